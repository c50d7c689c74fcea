package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/notemirror/backend/internal/remote"
)

func TestTagsAreResolvedAndLinked(t *testing.T) {
	db := openTestDB(t, "tags_linked")
	user := createTestUser(t, db, "a@example.com", "Alice", "S=s1:U=a1:E=7fffffff")

	client := newFakeClient()
	client.own = []remote.Notebook{{GUID: "nb-1", Name: "Journal"}}
	client.primary.tags["tag-1"] = remote.Tag{GUID: "tag-1", Name: "finance"}
	client.primary.tags["tag-2"] = remote.Tag{GUID: "tag-2", Name: "research"}
	client.primary.addNote("nb-1", remoteNote("guid-1", "Tagged", "<en-note>x</en-note>"), "tag-1", "tag-2")

	service := newTestService(t, db, &fakeFactory{clients: map[string]*fakeClient{user.RemoteToken: client}})
	if _, err := service.SyncUser(context.Background(), user.ID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if count := countRows(t, db, &Tag{}); count != 2 {
		t.Fatalf("expected two tags, got %d", count)
	}
	if count := countRows(t, db, &NoteTag{}); count != 2 {
		t.Fatalf("expected two note-tag links, got %d", count)
	}
}

func TestTagResolutionFailureSkipsOnlyThatTag(t *testing.T) {
	db := openTestDB(t, "tags_partial")
	user := createTestUser(t, db, "a@example.com", "Alice", "S=s1:U=a1:E=7fffffff")

	client := newFakeClient()
	client.own = []remote.Notebook{{GUID: "nb-1", Name: "Journal"}}
	client.primary.tags["tag-good"] = remote.Tag{GUID: "tag-good", Name: "keep"}
	client.primary.tagErrs["tag-bad"] = errors.New("tag store unavailable")
	client.primary.addNote("nb-1", remoteNote("guid-1", "Tagged", "<en-note>x</en-note>"), "tag-bad", "tag-good")

	service := newTestService(t, db, &fakeFactory{clients: map[string]*fakeClient{user.RemoteToken: client}})
	summary, err := service.SyncUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if summary.Notes != 1 {
		t.Fatalf("tag failure must not abort the note, got %d synced", summary.Notes)
	}

	if count := countRows(t, db, &Tag{}); count != 1 {
		t.Fatalf("expected the resolvable tag only, got %d", count)
	}
	if count := countRows(t, db, &NoteTag{}); count != 1 {
		t.Fatalf("expected one surviving link, got %d", count)
	}
}

func TestTagDeduplicatedAcrossNotes(t *testing.T) {
	db := openTestDB(t, "tags_dedup")
	user := createTestUser(t, db, "a@example.com", "Alice", "S=s1:U=a1:E=7fffffff")

	client := newFakeClient()
	client.own = []remote.Notebook{{GUID: "nb-1", Name: "Journal"}}
	client.primary.tags["tag-1"] = remote.Tag{GUID: "tag-1", Name: "shared-tag"}
	client.primary.addNote("nb-1", remoteNote("guid-1", "One", "<en-note>1</en-note>"), "tag-1")
	client.primary.addNote("nb-1", remoteNote("guid-2", "Two", "<en-note>2</en-note>"), "tag-1")

	service := newTestService(t, db, &fakeFactory{clients: map[string]*fakeClient{user.RemoteToken: client}})
	if _, err := service.SyncUser(context.Background(), user.ID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if count := countRows(t, db, &Tag{}); count != 1 {
		t.Fatalf("expected one deduplicated tag, got %d", count)
	}
	if count := countRows(t, db, &NoteTag{}); count != 2 {
		t.Fatalf("expected links from both notes, got %d", count)
	}
}
