package syncer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/notemirror/backend/internal/remote"
)

type noteOutcome int

const (
	outcomeNew noteOutcome = iota
	outcomeUpdated
	outcomeUnchanged
)

// noteStats aggregates one notebook's note pass.
type noteStats struct {
	New       int
	Updated   int
	Unchanged int
	Errors    int
}

// Synced counts the notes whose content was written this pass.
func (st noteStats) Synced() int {
	return st.New + st.Updated
}

// fingerprint is the sole change signal for a note. It covers the raw
// content payload only; metadata-only re-sends never trigger a write.
func fingerprint(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// syncNotebookNotes pages through one notebook's remote notes and runs
// each through the dedup decision procedure. A page-listing failure
// aborts the notebook; a single note's fetch failure is counted and
// skipped. Notebooks with sync disabled contribute nothing.
func (s *Service) syncNotebookNotes(ctx context.Context, user *User, target Target) (noteStats, error) {
	var stats noteStats
	if !target.Notebook.SyncEnabled {
		return stats, nil
	}

	offset := 0
	for {
		if err := s.pager.Wait(ctx); err != nil {
			return stats, newServiceError(opSyncNotes, "pacing_interrupted", err)
		}

		var page []remote.NoteMeta
		var total int
		err := s.listBackoff.Retry(ctx, func() error {
			var listErr error
			page, total, listErr = target.Context.Session.ListNoteMetadata(
				ctx, target.Context.NotebookGUID, offset, s.pageSize)
			return listErr
		})
		if err != nil {
			return stats, newServiceError(opSyncNotes, "page_listing_failed", err)
		}
		if len(page) == 0 {
			break
		}

		for _, meta := range page {
			outcome, err := s.syncSingleNote(ctx, user, target, meta)
			if err != nil {
				stats.Errors++
				s.logger.Warn("note sync failed",
					zap.Int64("user_id", user.ID),
					zap.String("note_guid", meta.GUID),
					zap.Error(err))
				continue
			}
			switch outcome {
			case outcomeNew:
				stats.New++
			case outcomeUpdated:
				stats.Updated++
			default:
				stats.Unchanged++
			}
		}

		offset += s.pageSize
		if offset >= total {
			break
		}
	}

	now := s.clock().UTC()
	err := s.db.WithContext(ctx).Model(target.Notebook).
		Updates(map[string]interface{}{"last_sync_at": now, "updated_at": now}).Error
	if err != nil {
		return stats, newServiceError(opSyncNotes, "notebook_stamp_failed", err)
	}

	s.logger.Info("notebook notes synced",
		zap.Int64("user_id", user.ID),
		zap.String("notebook", target.Notebook.Name),
		zap.Int("new", stats.New),
		zap.Int("updated", stats.Updated),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// syncSingleNote runs the dedup decision procedure for one remote note:
// unseen GUIDs are fetched and inserted, known GUIDs are re-fetched and
// updated only when the content fingerprint moved. The requesting user
// is granted access in every non-error branch, which is what makes the
// first-writer-populates, every-observer-gains-access scheme non-lossy.
func (s *Service) syncSingleNote(ctx context.Context, user *User, target Target, meta remote.NoteMeta) (noteOutcome, error) {
	existing, found, err := s.findNoteByGUID(ctx, meta.GUID)
	if err != nil {
		return outcomeUnchanged, err
	}

	if !found {
		inserted, err := s.insertNote(ctx, user, target, meta)
		if err != nil {
			return outcomeUnchanged, err
		}
		if inserted {
			return outcomeNew, nil
		}
		// Lost the insert race to a concurrent pass; reconcile against
		// the winner's row.
		existing, found, err = s.findNoteByGUID(ctx, meta.GUID)
		if err != nil {
			return outcomeUnchanged, err
		}
		if !found {
			return outcomeUnchanged, newServiceError(opSyncNotes, "note_vanished_after_conflict", nil)
		}
	}

	if err := s.ensureAccess(ctx, existing.ID, user.ID); err != nil {
		return outcomeUnchanged, err
	}

	full, err := target.Context.Session.FetchNote(ctx, meta.GUID)
	if err != nil {
		return outcomeUnchanged, newServiceError(opSyncNotes, "note_fetch_failed", err)
	}

	newHash := fingerprint(full.Content)
	if existing.ContentHash == newHash {
		return outcomeUnchanged, nil
	}

	now := s.clock().UTC()
	updates := map[string]interface{}{
		"plain_text":     remote.StripENML(full.Content),
		"raw_content":    full.Content,
		"content_hash":   newHash,
		"content_length": full.ContentLength,
		"updated_at":     now,
	}
	if full.Title != "" {
		updates["title"] = full.Title
	}
	if !full.UpdatedAt.IsZero() {
		updates["remote_updated_at"] = full.UpdatedAt
	}
	err = s.db.WithContext(ctx).Model(&Note{}).Where("id = ?", existing.ID).Updates(updates).Error
	if err != nil {
		return outcomeUnchanged, newServiceError(opSyncNotes, "note_update_failed", err)
	}

	s.syncNoteTags(ctx, target.Context.Session, existing.ID, meta.TagGUIDs)
	return outcomeUpdated, nil
}

func (s *Service) findNoteByGUID(ctx context.Context, guid string) (Note, bool, error) {
	var note Note
	err := s.db.WithContext(ctx).Where("remote_guid = ?", guid).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Note{}, false, nil
	}
	if err != nil {
		return Note{}, false, newServiceError(opSyncNotes, "note_select_failed", err)
	}
	return note, true, nil
}

// insertNote fetches full content and attempts the first write for a
// GUID. The insert is conflict-safe on remote_guid so that two users
// racing on the same new note leave exactly one row; the loser reports
// inserted=false and falls back to the found branch.
func (s *Service) insertNote(ctx context.Context, user *User, target Target, meta remote.NoteMeta) (bool, error) {
	full, err := target.Context.Session.FetchNote(ctx, meta.GUID)
	if err != nil {
		return false, newServiceError(opSyncNotes, "note_fetch_failed", err)
	}

	title := full.Title
	if title == "" {
		title = "Untitled"
	}
	now := s.clock().UTC()
	notebookID := target.Notebook.ID
	note := Note{
		RemoteGUID:    meta.GUID,
		NotebookID:    &notebookID,
		SourceUserID:  user.ID,
		Title:         title,
		PlainText:     remote.StripENML(full.Content),
		RawContent:    full.Content,
		ContentHash:   fingerprint(full.Content),
		ContentLength: full.ContentLength,
		SourceURL:     full.Attributes.SourceURL,
		Author:        full.Attributes.Author,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !full.CreatedAt.IsZero() {
		created := full.CreatedAt
		note.RemoteCreatedAt = &created
	}
	if !full.UpdatedAt.IsZero() {
		updated := full.UpdatedAt
		note.RemoteUpdatedAt = &updated
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_guid"}},
		DoNothing: true,
	}).Create(&note)
	if result.Error != nil {
		return false, newServiceError(opSyncNotes, "note_insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	if err := s.ensureAccess(ctx, note.ID, user.ID); err != nil {
		return false, err
	}
	s.syncNoteTags(ctx, target.Context.Session, note.ID, meta.TagGUIDs)
	return true, nil
}
