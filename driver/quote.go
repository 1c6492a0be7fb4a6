package driver

import "strings"

// QuoteIdentifierWith implements the shared quoting rule every concrete
// driver follows, parameterised only by the open/close quote character
// pair ("`"/"`" for sqlite and mysql, `"`/`"` for postgres). "*" and
// anything already containing the quote character pass through
// untouched; a dotted name quotes each segment.
func QuoteIdentifierWith(name, open, close string) string {
	if name == "" || name == "*" {
		return name
	}
	if strings.Contains(name, open) || strings.Contains(name, "(") {
		return name
	}
	segments := strings.Split(name, ".")
	for i, seg := range segments {
		if seg == "*" {
			continue
		}
		segments[i] = open + seg + close
	}
	return strings.Join(segments, ".")
}
