package syncer

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/notemirror/backend/internal/remote"
)

// SyncContext carries the transient routing state a notebook needs for
// note listing: which store session to use and which remote notebook
// GUID to list. Shared notebooks route through a shared store session,
// owned notebooks through the account's primary one. It lives only for
// the duration of a pass and is never persisted.
type SyncContext struct {
	Session      remote.Session
	NotebookGUID string
}

// Target pairs a reconciled local notebook with its routing context.
type Target struct {
	Notebook *Notebook
	Context  SyncContext
}

func mapPrivilege(code int) string {
	switch code {
	case remote.PrivilegeCodeModify:
		return PrivilegeModify
	case remote.PrivilegeCodeFull:
		return PrivilegeFull
	default:
		// Unknown codes map to READ.
		return PrivilegeRead
	}
}

// syncOwnNotebooks reconciles the user's own notebooks into local rows
// and returns them as note-sync targets routed through the primary store.
func (s *Service) syncOwnNotebooks(ctx context.Context, client remote.ContentClient, user *User) ([]Target, error) {
	remoteNotebooks, err := client.ListOwnNotebooks(ctx)
	if err != nil {
		return nil, newServiceError(opSyncNotebooks, "list_own_failed", err)
	}

	session := client.PrimarySession()
	targets := make([]Target, 0, len(remoteNotebooks))
	for _, rnb := range remoteNotebooks {
		row := Notebook{
			UserID:       user.ID,
			NotebookGUID: rnb.GUID,
			Name:         rnb.Name,
			Stack:        rnb.Stack,
			IsShared:     false,
			USN:          rnb.UpdateSequenceNum,
			SyncEnabled:  true,
		}
		notebook, err := s.upsertNotebook(ctx, row, map[string]interface{}{
			"name":       rnb.Name,
			"stack":      rnb.Stack,
			"usn":        rnb.UpdateSequenceNum,
			"updated_at": s.clock().UTC(),
		})
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{
			Notebook: notebook,
			Context:  SyncContext{Session: session, NotebookGUID: rnb.GUID},
		})
	}

	s.logger.Info("own notebooks reconciled",
		zap.Int64("user_id", user.ID),
		zap.Int("count", len(targets)))
	return targets, nil
}

// syncLinkedNotebooks reconciles notebooks shared to the user. Each
// linked notebook is resolved through its shared store to obtain the
// canonical notebook GUID, the owner label and the privilege grant.
func (s *Service) syncLinkedNotebooks(ctx context.Context, client remote.ContentClient, user *User) ([]Target, error) {
	linked, err := client.ListLinkedNotebooks(ctx)
	if err != nil {
		return nil, newServiceError(opSyncNotebooks, "list_linked_failed", err)
	}

	targets := make([]Target, 0, len(linked))
	for _, lnb := range linked {
		session, shared, err := client.OpenSharedStore(ctx, lnb)
		if err != nil {
			return nil, newServiceError(opSyncNotebooks, "open_shared_store_failed", err)
		}

		sharedFrom := lnb.Username
		if sharedFrom == "" {
			sharedFrom = lnb.ShareName
		}
		if sharedFrom == "" {
			sharedFrom = "Unknown"
		}
		name := lnb.ShareName
		if name == "" {
			name = "Shared Notebook"
		}

		row := Notebook{
			UserID:             user.ID,
			NotebookGUID:       shared.NotebookGUID,
			Name:               name,
			IsShared:           true,
			SharedFrom:         sharedFrom,
			SharedNotebookGUID: sharedGUID(shared.ID),
			Privilege:          mapPrivilege(shared.Privilege),
			SyncEnabled:        true,
		}
		notebook, err := s.upsertNotebook(ctx, row, map[string]interface{}{
			"name":        name,
			"shared_from": sharedFrom,
			"updated_at":  s.clock().UTC(),
		})
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{
			Notebook: notebook,
			Context:  SyncContext{Session: session, NotebookGUID: shared.NotebookGUID},
		})
	}

	s.logger.Info("linked notebooks reconciled",
		zap.Int64("user_id", user.ID),
		zap.Int("count", len(targets)))
	return targets, nil
}

// upsertNotebook inserts or updates a (user, notebook GUID) row. The
// assignment set deliberately excludes sync_enabled: the user-controlled
// flag must survive every re-sync.
func (s *Service) upsertNotebook(ctx context.Context, row Notebook, assignments map[string]interface{}) (*Notebook, error) {
	now := s.clock().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "notebook_guid"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
	if err != nil {
		return nil, newServiceError(opSyncNotebooks, "notebook_upsert_failed", err)
	}

	var notebook Notebook
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND notebook_guid = ?", row.UserID, row.NotebookGUID).
		Take(&notebook).Error
	if err != nil {
		return nil, newServiceError(opSyncNotebooks, "notebook_reload_failed", err)
	}
	return &notebook, nil
}

func sharedGUID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
