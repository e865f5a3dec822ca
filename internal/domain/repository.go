package domain

// HistoryRepository defines the interface for download history persistence
type HistoryRepository interface {
	// Create stores a new record and assigns its id
	Create(record *HistoryRecord) error

	// List returns records matching the filter, newest first
	List(filter HistoryFilter) ([]*HistoryRecord, error)

	// Search returns records whose title, url or platform contains the query, newest first
	Search(query string) ([]*HistoryRecord, error)

	// Delete deletes a record by id, returning ErrHistoryNotFound when absent
	Delete(id int64) error

	// DeleteAll removes every record and returns how many were removed
	DeleteAll() (int64, error)

	// GetStats returns history statistics
	GetStats() (*HistoryStats, error)
}
