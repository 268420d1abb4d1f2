package record

// ListOptions selects a window of a week's records ordered by id.
// A zero Limit returns every record from Offset on.
type ListOptions struct {
	Offset int
	Limit  int
}
