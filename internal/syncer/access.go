package syncer

import (
	"context"

	"gorm.io/gorm/clause"
)

// ensureAccess records that the user's sync has observed the note.
// The insert is keyed on (note_id, user_id) and conflict-safe, so
// repeated grants are no-ops and concurrent passes cannot duplicate
// rows. Grants are never revoked by the engine.
func (s *Service) ensureAccess(ctx context.Context, noteID, userID int64) error {
	grant := NoteAccess{
		NoteID:     noteID,
		UserID:     userID,
		AccessType: AccessTypeSync,
		SyncedAt:   s.clock().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "note_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&grant).Error
	if err != nil {
		return newServiceError(opSyncNotes, "access_grant_failed", err)
	}
	return nil
}
