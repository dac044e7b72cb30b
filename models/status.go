package models

// RecordStatus is the lifecycle of a soft-deletable row. A deleted row is
// hidden from every listing but its bytes still exist; a purged row has had
// its bytes reclaimed and is kept only as history.
type RecordStatus string

const (
	StatusActive  RecordStatus = "active"
	StatusDeleted RecordStatus = "deleted"
	StatusPurged  RecordStatus = "purged"
)

func (s RecordStatus) IsActive() bool {
	return s == StatusActive || s == ""
}

func (s RecordStatus) Valid() bool {
	switch s {
	case StatusActive, StatusDeleted, StatusPurged:
		return true
	}
	return false
}
