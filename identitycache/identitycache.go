// Package identitycache implements the per-EntityManager identity map:
// a (type_id, primary_key) -> record lookup so two finds of the same
// row return the same Go pointer. It is not safe to share across
// EntityManagers or goroutines.
package identitycache

import "fmt"

type key struct {
	typeID string
	pk     any
}

// Cache is a (type_id, primary_key) -> record map. The zero value is
// not usable; construct with New.
type Cache struct {
	records map[key]any
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{records: map[key]any{}}
}

func makeKey(typeID string, pk any) key {
	// Slices and maps aren't comparable map keys; a primary key is
	// always a scalar in this core (composite keys are out of scope),
	// so normalising through fmt.Sprint is safe and keeps int(1) and
	// int64(1) from being treated as distinct keys.
	return key{typeID: typeID, pk: fmt.Sprint(pk)}
}

// Get returns the cached record for (typeID, pk), if any.
func (c *Cache) Get(typeID string, pk any) (any, bool) {
	if pk == nil {
		return nil, false
	}
	r, ok := c.records[makeKey(typeID, pk)]
	return r, ok
}

// Has reports whether (typeID, pk) is cached.
func (c *Cache) Has(typeID string, pk any) bool {
	_, ok := c.Get(typeID, pk)
	return ok
}

// Set stores record under (typeID, pk), overwriting any existing
// entry. Storing with a nil pk is a no-op — only records with a
// non-null primary key are cached.
func (c *Cache) Set(typeID string, pk any, record any) {
	if pk == nil {
		return
	}
	c.records[makeKey(typeID, pk)] = record
}

// Clear evicts one (typeID, pk) entry.
func (c *Cache) Clear(typeID string, pk any) {
	delete(c.records, makeKey(typeID, pk))
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.records = map[key]any{}
}
