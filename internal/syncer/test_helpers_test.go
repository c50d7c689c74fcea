package syncer

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/notemirror/backend/internal/auth"
	"github.com/notemirror/backend/internal/backoff"
	"github.com/notemirror/backend/internal/remote"
)

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(&User{}, &Notebook{}, &Note{}, &Tag{}, &NoteTag{}, &NoteAccess{}, &SyncLog{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email, name, token string) *User {
	t.Helper()
	expiry := time.Now().Add(24 * time.Hour).UTC()
	user := User{
		Email:          email,
		Name:           name,
		RemoteToken:    token,
		RemoteShard:    "s1",
		TokenExpiresAt: &expiry,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return &user
}

// fakeSession scripts one note store. Notes are keyed by notebook GUID
// for listing and by note GUID for full fetches.
type fakeSession struct {
	metas     map[string][]remote.NoteMeta
	notes     map[string]remote.Note
	tags      map[string]remote.Tag
	fetchErrs map[string]error
	tagErrs   map[string]error
	listErr   error
	listCalls int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		metas:     map[string][]remote.NoteMeta{},
		notes:     map[string]remote.Note{},
		tags:      map[string]remote.Tag{},
		fetchErrs: map[string]error{},
		tagErrs:   map[string]error{},
	}
}

func (s *fakeSession) addNote(notebookGUID string, note remote.Note, tagGUIDs ...string) {
	s.notes[note.GUID] = note
	s.metas[notebookGUID] = append(s.metas[notebookGUID], remote.NoteMeta{
		GUID:          note.GUID,
		Title:         note.Title,
		ContentLength: note.ContentLength,
		CreatedAt:     note.CreatedAt,
		UpdatedAt:     note.UpdatedAt,
		TagGUIDs:      tagGUIDs,
	})
}

func (s *fakeSession) ListNoteMetadata(_ context.Context, notebookGUID string, offset, pageSize int) ([]remote.NoteMeta, int, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	all := s.metas[notebookGUID]
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (s *fakeSession) FetchNote(_ context.Context, noteGUID string) (remote.Note, error) {
	if err := s.fetchErrs[noteGUID]; err != nil {
		return remote.Note{}, err
	}
	note, ok := s.notes[noteGUID]
	if !ok {
		return remote.Note{}, fmt.Errorf("no such note %s", noteGUID)
	}
	return note, nil
}

func (s *fakeSession) FetchTag(_ context.Context, tagGUID string) (remote.Tag, error) {
	if err := s.tagErrs[tagGUID]; err != nil {
		return remote.Tag{}, err
	}
	tag, ok := s.tags[tagGUID]
	if !ok {
		return remote.Tag{}, fmt.Errorf("no such tag %s", tagGUID)
	}
	return tag, nil
}

// fakeClient scripts the per-user content client.
type fakeClient struct {
	own            []remote.Notebook
	linked         []remote.LinkedNotebook
	shared         map[string]remote.SharedNotebook
	primary        *fakeSession
	sharedSessions map[string]*fakeSession
	ownErr         error
	linkedErr      error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		shared:         map[string]remote.SharedNotebook{},
		primary:        newFakeSession(),
		sharedSessions: map[string]*fakeSession{},
	}
}

func (c *fakeClient) ListOwnNotebooks(context.Context) ([]remote.Notebook, error) {
	if c.ownErr != nil {
		return nil, c.ownErr
	}
	return c.own, nil
}

func (c *fakeClient) ListLinkedNotebooks(context.Context) ([]remote.LinkedNotebook, error) {
	if c.linkedErr != nil {
		return nil, c.linkedErr
	}
	return c.linked, nil
}

func (c *fakeClient) PrimarySession() remote.Session {
	return c.primary
}

func (c *fakeClient) OpenSharedStore(_ context.Context, linked remote.LinkedNotebook) (remote.Session, remote.SharedNotebook, error) {
	shared, ok := c.shared[linked.GUID]
	if !ok {
		return nil, remote.SharedNotebook{}, fmt.Errorf("no share record for %s", linked.GUID)
	}
	session, ok := c.sharedSessions[linked.GUID]
	if !ok {
		session = newFakeSession()
		c.sharedSessions[linked.GUID] = session
	}
	return session, shared, nil
}

type fakeFactory struct {
	clients map[string]*fakeClient
}

func (f *fakeFactory) NewClient(token, _ string) (remote.ContentClient, error) {
	client, ok := f.clients[token]
	if !ok {
		return nil, fmt.Errorf("no scripted client for token %q", token)
	}
	return client, nil
}

func newTestService(t *testing.T, db *gorm.DB, factory auth.ClientFactory) *Service {
	t.Helper()
	provider, err := auth.NewProvider(auth.ProviderConfig{Factory: factory})
	if err != nil {
		t.Fatalf("failed to build auth provider: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:     db,
		Auth:         provider,
		IDProvider:   NewUUIDProvider(),
		PageSize:     50,
		PageInterval: time.Millisecond,
		ListBackoff:  backoff.Policy{MaxAttempts: 1},
	})
	if err != nil {
		t.Fatalf("failed to build sync service: %v", err)
	}
	return service
}

func remoteNote(guid, title, content string) remote.Note {
	return remote.Note{
		GUID:          guid,
		Title:         title,
		Content:       content,
		ContentLength: int32(len(content)),
		CreatedAt:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC),
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}
