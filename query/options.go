package query

// Options carries the verbatim SELECT/COUNT modifiers a caller can
// request: which relations to eager-join, ordering, paging, dedup.
type Options struct {
	// Joins names relation fields to eager-load via a SQL join. Only
	// relations declared Eager in the descriptor are actually joined;
	// naming a Lazy relation here is a no-op (its loader thunk is
	// still installed by the Hydrator).
	Joins []string

	OrderBy  []OrderTerm
	GroupBy  []string
	Limit    *int
	Offset   *int
	Distinct bool
}
