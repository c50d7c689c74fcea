package remote

import "time"

// PrivilegeLevel codes reported by the remote service for shared notebooks.
// Only the three documented levels are meaningful; anything else maps to READ.
const (
	PrivilegeCodeRead   = 1
	PrivilegeCodeModify = 2
	PrivilegeCodeFull   = 3
)

// Notebook is a notebook owned by the authenticated remote account.
type Notebook struct {
	GUID              string
	Name              string
	Stack             string
	UpdateSequenceNum int32
}

// LinkedNotebook is a notebook shared to the authenticated account by
// another remote user. Its canonical notebook GUID is only resolvable
// through the shared store (see ContentClient.OpenSharedStore).
type LinkedNotebook struct {
	GUID      string
	ShareName string
	Username  string
	ShardID   string
	ShareKey  string
}

// SharedNotebook describes the share record resolved from a linked
// notebook via the shared store.
type SharedNotebook struct {
	ID           int64
	NotebookGUID string
	Privilege    int
}

// NoteMeta is the listing-level view of a note: enough to decide
// whether a full fetch is needed, nothing more.
type NoteMeta struct {
	GUID          string
	Title         string
	ContentLength int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
	TagGUIDs      []string
}

// NoteAttributes carries note provenance as reported by the remote service.
type NoteAttributes struct {
	SourceURL string
	Author    string
}

// Note is the full content payload for a single note.
type Note struct {
	GUID          string
	Title         string
	Content       string
	ContentLength int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Attributes    NoteAttributes
}

// Tag is a remote tag resolved by GUID.
type Tag struct {
	GUID string
	Name string
}
