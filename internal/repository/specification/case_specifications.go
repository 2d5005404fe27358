package specification

// NewestFirst orders cases by descending id, which tracks insertion order.
func NewestFirst() Specification {
	return OrderBy{Field: "id", Desc: true}
}
