package metadata

import "strings"

// TagKey is the struct tag every annotated field and the table marker
// are read from.
const TagKey = "entity"

// Meta is embedded (anonymously) in an entity struct to carry the
// type-level table/alias annotation, since those have no single field
// to attach to:
//
//	type User struct {
//		metadata.Meta `entity:"table=users,alias=user"`
//		ID       int64  `entity:"pk,column=id,generated"`
//		Username string `entity:"column=username"`
//	}
type Meta struct{}

// tagParts splits a struct tag value on commas into trimmed, non-empty
// pieces, e.g. "pk,column=id,generated" -> ["pk","column=id","generated"].
func tagParts(tag string) []string {
	raw := strings.Split(tag, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// tagDirectives holds a parsed tag: a flag set (bare flags map to true)
// and a key=value lookup.
type tagDirectives struct {
	flags  map[string]bool
	values map[string]string
}

func parseTag(tag string) tagDirectives {
	d := tagDirectives{flags: map[string]bool{}, values: map[string]string{}}
	for _, part := range tagParts(tag) {
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			d.values[part[:eq]] = part[eq+1:]
		} else {
			d.flags[part] = true
		}
	}
	return d
}

func (d tagDirectives) has(flag string) bool       { return d.flags[flag] }
func (d tagDirectives) get(key string) (string, bool) { v, ok := d.values[key]; return v, ok }
func (d tagDirectives) getOr(key, fallback string) string {
	if v, ok := d.values[key]; ok {
		return v
	}
	return fallback
}
