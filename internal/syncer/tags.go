package syncer

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/notemirror/backend/internal/remote"
)

// sessionTagFetcher is the slice of remote.Session the tag path needs.
type sessionTagFetcher interface {
	FetchTag(ctx context.Context, tagGUID string) (remote.Tag, error)
}

// syncNoteTags resolves each remote tag GUID to a local Tag, creating
// it on first sight, and links it to the note. Tag failures never
// propagate: a tag that cannot be resolved is skipped and the rest of
// the note's tags still link. Partial tag loss is acceptable, content
// loss is not.
func (s *Service) syncNoteTags(ctx context.Context, session sessionTagFetcher, noteID int64, tagGUIDs []string) {
	for _, tagGUID := range tagGUIDs {
		if err := s.linkNoteTag(ctx, session, noteID, tagGUID); err != nil {
			s.logger.Debug("tag resolution skipped",
				zap.Int64("note_id", noteID),
				zap.String("tag_guid", tagGUID),
				zap.Error(err))
		}
	}
}

func (s *Service) linkNoteTag(ctx context.Context, session sessionTagFetcher, noteID int64, tagGUID string) error {
	var tag Tag
	err := s.db.WithContext(ctx).Where("remote_guid = ?", tagGUID).Take(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		remoteTag, fetchErr := session.FetchTag(ctx, tagGUID)
		if fetchErr != nil {
			return fetchErr
		}
		tag = Tag{RemoteGUID: tagGUID, Name: remoteTag.Name, CreatedAt: s.clock().UTC()}
		createErr := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "remote_guid"}},
			DoNothing: true,
		}).Create(&tag).Error
		if createErr != nil {
			return createErr
		}
		if tag.ID == 0 {
			// Concurrent pass created it first; reload for the link.
			if reloadErr := s.db.WithContext(ctx).Where("remote_guid = ?", tagGUID).Take(&tag).Error; reloadErr != nil {
				return reloadErr
			}
		}
	} else if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&NoteTag{NoteID: noteID, TagID: tag.ID}).Error
}
