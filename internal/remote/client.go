// Package remote defines the collaborator boundary to the hosted
// note-taking service. The sync engine consumes these interfaces only;
// the concrete JSON-gateway transport lives behind them and is replaced
// by scripted fakes in tests.
package remote

import "context"

// Session is an authenticated handle against one note store. Owned
// notebooks use the account's primary store; each linked notebook uses
// a shared store opened from its share record.
type Session interface {
	// ListNoteMetadata pages through the notes of one notebook. It
	// returns the page starting at offset plus the store's total note
	// count for the notebook, which bounds the pagination loop.
	ListNoteMetadata(ctx context.Context, notebookGUID string, offset, pageSize int) ([]NoteMeta, int, error)

	// FetchNote returns the full note payload including raw content.
	FetchNote(ctx context.Context, noteGUID string) (Note, error)

	// FetchTag resolves a tag GUID to its display name.
	FetchTag(ctx context.Context, tagGUID string) (Tag, error)
}

// ContentClient is the per-user entry point to the remote service,
// produced by the auth provider once a user's token checks out.
type ContentClient interface {
	// ListOwnNotebooks returns the notebooks owned by the account.
	ListOwnNotebooks(ctx context.Context) ([]Notebook, error)

	// ListLinkedNotebooks returns notebooks shared to the account.
	ListLinkedNotebooks(ctx context.Context) ([]LinkedNotebook, error)

	// PrimarySession returns the session for the account's own store.
	PrimarySession() Session

	// OpenSharedStore authenticates against the shared store behind a
	// linked notebook and resolves its share record, which carries the
	// canonical notebook GUID and the granted privilege code.
	OpenSharedStore(ctx context.Context, linked LinkedNotebook) (Session, SharedNotebook, error)
}
