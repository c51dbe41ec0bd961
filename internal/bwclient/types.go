package bwclient

// SessionToken is the opaque handle the backend issues on unlock. It is
// only ever forwarded back to the backend via the BW_SESSION environment
// variable of child processes.
type SessionToken string

// BackendStatus is the lock state the backend reports for itself.
type BackendStatus int

const (
	StatusUnknown BackendStatus = iota
	StatusLocked
	StatusUnlocked
)

func (s BackendStatus) String() string {
	switch s {
	case StatusLocked:
		return "locked"
	case StatusUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Status is the JSON document `bw status` prints.
type Status struct {
	Status    string `json:"status"` // "unlocked", "locked" or "unauthenticated"
	LastSync  string `json:"lastSync"`
	UserEmail string `json:"userEmail"`
	UserID    string `json:"userId"`
}

// Folder is one entry of `bw list folders`. The ID is empty for the
// implicit "No Folder" entry.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ItemSummary is the listing view of a vault item, enough to know what to
// fetch and where to place it. Content is never part of a listing.
type ItemSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FolderID string `json:"folderId"`
	Type     int    `json:"type"`
}
