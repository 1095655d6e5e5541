package database

// Keys of the persisted application state. Each value is a JSON document.
const (
	KeyUser        = "user"
	KeyPreferences = "preferences"
	KeyBookmarks   = "bookmarks"
)

// Entry is a raw row of the key-value table.
type Entry struct {
	Key       string
	Value     string
	UpdatedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Keys      int
	SizeBytes int64
}
