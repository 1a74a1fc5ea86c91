package ports

import "fmt"

// EventKind is the kind of a classified change.
type EventKind int

const (
	Created EventKind = iota + 1
	Modified
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "CREATED"
	case Modified:
		return "MODIFIED"
	case Deleted:
		return "DELETED"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ChangeRecord is a classified filesystem change. Records are values; two
// records with equal fields are interchangeable.
type ChangeRecord struct {
	FileName     string    `json:"file_name"`
	AbsolutePath string    `json:"absolute_path"`
	Kind         EventKind `json:"kind"`
}

func (r ChangeRecord) String() string {
	return fmt.Sprintf("[%s] %s || %s", r.Kind, r.FileName, r.AbsolutePath)
}
