package syncer

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/notemirror/backend/internal/auth"
)

// StoreCredentials decodes a packed remote access token and persists
// its auth-derived fields onto the user. The OAuth handshake producing
// the token happens outside this service; this is the ingestion side
// of that boundary.
func (s *Service) StoreCredentials(ctx context.Context, userID int64, token string) (auth.Credentials, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auth.Credentials{}, newServiceError(opSyncUser, "user_not_found", ErrUserNotFound)
		}
		return auth.Credentials{}, newServiceError(opSyncUser, "user_select_failed", err)
	}

	creds, err := auth.ParseAccessToken(token)
	if err != nil {
		return auth.Credentials{}, newServiceError(opSyncUser, "token_parse_failed", err)
	}

	updates := map[string]interface{}{
		"remote_token":     creds.Token,
		"remote_shard":     creds.Shard,
		"token_expires_at": creds.ExpiresAt,
	}
	if creds.RemoteUserID != 0 {
		updates["remote_user_id"] = creds.RemoteUserID
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return auth.Credentials{}, newServiceError(opSyncUser, "credential_store_failed", err)
	}
	return creds, nil
}
