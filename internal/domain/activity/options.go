package activity

// ListOptions provides filtering options for listing journal entries.
type ListOptions struct {
	WeekID     *int64
	RecordID   *int64
	ChangeType *ChangeType
	Limit      int
	Offset     int
}
