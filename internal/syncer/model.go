package syncer

import "time"

// SyncStatus values for SyncLog. A log row moves STARTED → SUCCESS or
// STARTED → FAILED and is never touched again.
const (
	SyncStatusStarted = "STARTED"
	SyncStatusSuccess = "SUCCESS"
	SyncStatusFailed  = "FAILED"
)

// SyncTypeFull is the only pass type currently recorded.
const SyncTypeFull = "FULL"

// AccessTypeSync marks grants produced by the sync engine.
const AccessTypeSync = "SYNC"

// Privilege levels for shared notebooks, mapped from the remote
// service's numeric codes. Unknown codes map to READ.
const (
	PrivilegeRead   = "READ"
	PrivilegeModify = "MODIFY"
	PrivilegeFull   = "FULL"
)

// User is a local account. Accounts are created out-of-band; the sync
// engine only reads the remote-auth fields and stamps last_sync_at.
type User struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Email          string     `gorm:"column:email;size:255;uniqueIndex;not null"`
	Name           string     `gorm:"column:name;size:100;not null"`
	RemoteUserID   *int64     `gorm:"column:remote_user_id;uniqueIndex"`
	RemoteToken    string     `gorm:"column:remote_token;type:text"`
	RemoteShard    string     `gorm:"column:remote_shard;size:10"`
	TokenExpiresAt *time.Time `gorm:"column:token_expires_at"`
	LastSyncAt     *time.Time `gorm:"column:last_sync_at"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Notebook is a local, per-user view of a remote notebook. Two users
// pointing at the same remote notebook each hold their own row because
// sync_enabled and last_sync_at are per-user state.
type Notebook struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	UserID       int64  `gorm:"column:user_id;not null;uniqueIndex:uq_notebooks_user_guid,priority:1"`
	NotebookGUID string `gorm:"column:notebook_guid;size:64;not null;uniqueIndex:uq_notebooks_user_guid,priority:2"`
	Name         string `gorm:"column:name;size:255;not null"`
	Stack        string `gorm:"column:stack;size:255"`

	IsShared           bool   `gorm:"column:is_shared;not null;default:false"`
	SharedFrom         string `gorm:"column:shared_from;size:255"`
	SharedNotebookGUID string `gorm:"column:shared_notebook_guid;size:64"`
	Privilege          string `gorm:"column:privilege;size:20;default:READ"`

	USN         int32      `gorm:"column:usn;not null;default:0"`
	SyncEnabled bool       `gorm:"column:sync_enabled;not null;default:true"`
	LastSyncAt  *time.Time `gorm:"column:last_sync_at"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Notebook) TableName() string {
	return "notebooks"
}

// Note is the deduplicated content unit: exactly one row per remote
// GUID no matter how many users can see it. SourceUserID records whose
// pass first stored the row, for attribution only — visibility is
// decided by NoteAccess.
type Note struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	RemoteGUID   string `gorm:"column:remote_guid;size:64;not null;uniqueIndex"`
	NotebookID   *int64 `gorm:"column:notebook_id"`
	SourceUserID int64  `gorm:"column:source_user_id;not null"`

	Title         string `gorm:"column:title;size:500;not null"`
	PlainText     string `gorm:"column:plain_text;type:text"`
	RawContent    string `gorm:"column:raw_content;type:text"`
	ContentHash   string `gorm:"column:content_hash;size:32"`
	ContentLength int32  `gorm:"column:content_length;not null;default:0"`

	SourceURL string `gorm:"column:source_url;type:text"`
	Author    string `gorm:"column:author;size:255"`
	Company   string `gorm:"column:company;size:255"`

	RemoteCreatedAt *time.Time `gorm:"column:remote_created_at"`
	RemoteUpdatedAt *time.Time `gorm:"column:remote_updated_at"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	IsDeleted bool      `gorm:"column:is_deleted;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// Tag is deduplicated by remote GUID, many-to-many with Note.
type Tag struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RemoteGUID string    `gorm:"column:remote_guid;size:64;uniqueIndex"`
	Name       string    `gorm:"column:name;size:100;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Tag) TableName() string {
	return "tags"
}

// NoteTag links notes to tags.
type NoteTag struct {
	NoteID int64 `gorm:"column:note_id;primaryKey"`
	TagID  int64 `gorm:"column:tag_id;primaryKey"`
}

// TableName provides the explicit table binding for GORM.
func (NoteTag) TableName() string {
	return "note_tags"
}

// NoteAccess records that a user's sync has observed a note and may
// view it, independent of which user's pass stored the content.
type NoteAccess struct {
	NoteID     int64     `gorm:"column:note_id;primaryKey"`
	UserID     int64     `gorm:"column:user_id;primaryKey"`
	AccessType string    `gorm:"column:access_type;size:20;default:SYNC"`
	SyncedAt   time.Time `gorm:"column:synced_at"`
}

// TableName provides the explicit table binding for GORM.
func (NoteAccess) TableName() string {
	return "note_access"
}

// SyncLog is the append-only record of one sync pass.
type SyncLog struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement"`
	PassID          string     `gorm:"column:pass_id;size:36;not null"`
	UserID          int64      `gorm:"column:user_id;not null;index"`
	SyncType        string     `gorm:"column:sync_type;size:20;not null"`
	Status          string     `gorm:"column:status;size:20;not null"`
	NotesSynced     int        `gorm:"column:notes_synced;not null;default:0"`
	NotebooksSynced int        `gorm:"column:notebooks_synced;not null;default:0"`
	ErrorMessage    string     `gorm:"column:error_message;type:text"`
	StartedAt       time.Time  `gorm:"column:started_at"`
	FinishedAt      *time.Time `gorm:"column:finished_at"`
}

// TableName provides the explicit table binding for GORM.
func (SyncLog) TableName() string {
	return "sync_log"
}
