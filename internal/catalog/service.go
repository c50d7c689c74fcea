// Package catalog is the read side of the mirrored store: notebook and
// note listings, sync history and the per-notebook sync toggle. It
// never talks to the remote service.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/notemirror/backend/internal/syncer"
)

// ErrNotebookNotFound indicates the notebook id does not exist.
var ErrNotebookNotFound = errors.New("catalog: notebook not found")

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	previewRunes     = 300
	defaultHistory   = 5
)

// ServiceConfig describes the dependencies of the catalog service.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service answers read queries over the mirrored content.
type Service struct {
	db *gorm.DB
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("catalog: database connection required")
	}
	return &Service{db: cfg.Database}, nil
}

// NotebookView is the listing shape for one notebook.
type NotebookView struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	IsShared    bool       `json:"is_shared"`
	SharedFrom  string     `json:"shared_from,omitempty"`
	Privilege   string     `json:"privilege"`
	NoteCount   int64      `json:"note_count"`
	SyncEnabled bool       `json:"sync_enabled"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
}

// NoteView is the listing shape for one note. PlainText is truncated to
// a preview at this boundary only; the stored rendering stays complete.
type NoteView struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Preview         string     `json:"preview"`
	Company         string     `json:"company,omitempty"`
	Tags            []string   `json:"tags"`
	NotebookName    string     `json:"notebook_name,omitempty"`
	IsShared        bool       `json:"is_shared"`
	SharedFrom      string     `json:"shared_from,omitempty"`
	SourceUser      string     `json:"source_user"`
	RemoteCreatedAt *time.Time `json:"remote_created_at,omitempty"`
	RemoteUpdatedAt *time.Time `json:"remote_updated_at,omitempty"`
}

// NotesPage is one page of the note listing with the unpaged total.
type NotesPage struct {
	Total int64      `json:"total"`
	Notes []NoteView `json:"notes"`
}

// NoteFilters narrows the note listing. Zero values mean no filter.
type NoteFilters struct {
	Text       string
	Tag        string
	Company    string
	NotebookID int64
	SharedOnly bool
	Limit      int
	Offset     int
}

// ListNotebooks returns the user's notebooks, own before shared, with
// per-notebook note counts.
func (s *Service) ListNotebooks(ctx context.Context, userID int64) ([]NotebookView, error) {
	var notebooks []syncer.Notebook
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_shared ASC, name ASC").
		Find(&notebooks).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: notebook query failed: %w", err)
	}

	views := make([]NotebookView, 0, len(notebooks))
	for _, nb := range notebooks {
		var count int64
		err := s.db.WithContext(ctx).Model(&syncer.Note{}).
			Where("notebook_id = ? AND is_deleted = ?", nb.ID, false).
			Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("catalog: note count failed: %w", err)
		}
		views = append(views, NotebookView{
			ID:          nb.ID,
			Name:        nb.Name,
			IsShared:    nb.IsShared,
			SharedFrom:  nb.SharedFrom,
			Privilege:   nb.Privilege,
			NoteCount:   count,
			SyncEnabled: nb.SyncEnabled,
			LastSyncAt:  nb.LastSyncAt,
		})
	}
	return views, nil
}

// ListNotes returns the notes the user has access to, filtered and
// paged, newest remote creation first.
func (s *Service) ListNotes(ctx context.Context, userID int64, filters NoteFilters) (NotesPage, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	var total int64
	err := s.notesQuery(ctx, userID, filters).
		Distinct("notes.id").
		Count(&total).Error
	if err != nil {
		return NotesPage{}, fmt.Errorf("catalog: note count failed: %w", err)
	}

	var rows []syncer.Note
	err = s.notesQuery(ctx, userID, filters).
		Select("DISTINCT notes.*").
		Order("notes.remote_created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return NotesPage{}, fmt.Errorf("catalog: note query failed: %w", err)
	}

	views, err := s.buildNoteViews(ctx, rows)
	if err != nil {
		return NotesPage{}, err
	}
	return NotesPage{Total: total, Notes: views}, nil
}

func (s *Service) notesQuery(ctx context.Context, userID int64, filters NoteFilters) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&syncer.Note{}).
		Joins("JOIN note_access ON note_access.note_id = notes.id").
		Where("note_access.user_id = ? AND notes.is_deleted = ?", userID, false)

	if filters.Text != "" {
		like := "%" + filters.Text + "%"
		query = query.Where("notes.title LIKE ? OR notes.plain_text LIKE ?", like, like)
	}
	if filters.Tag != "" {
		query = query.
			Joins("JOIN note_tags ON note_tags.note_id = notes.id").
			Joins("JOIN tags ON tags.id = note_tags.tag_id").
			Where("LOWER(tags.name) = LOWER(?)", filters.Tag)
	}
	if filters.Company != "" {
		query = query.Where("notes.company = ?", filters.Company)
	}
	if filters.NotebookID != 0 {
		query = query.Where("notes.notebook_id = ?", filters.NotebookID)
	}
	if filters.SharedOnly {
		query = query.
			Joins("JOIN notebooks ON notebooks.id = notes.notebook_id").
			Where("notebooks.is_shared = ?", true)
	}
	return query
}

func (s *Service) buildNoteViews(ctx context.Context, rows []syncer.Note) ([]NoteView, error) {
	views := make([]NoteView, 0, len(rows))
	if len(rows) == 0 {
		return views, nil
	}

	notebookNames := map[int64]syncer.Notebook{}
	userNames := map[int64]string{}
	for _, note := range rows {
		if note.NotebookID != nil {
			notebookNames[*note.NotebookID] = syncer.Notebook{}
		}
		userNames[note.SourceUserID] = ""
	}

	notebookIDs := make([]int64, 0, len(notebookNames))
	for id := range notebookNames {
		notebookIDs = append(notebookIDs, id)
	}
	if len(notebookIDs) > 0 {
		var notebooks []syncer.Notebook
		if err := s.db.WithContext(ctx).Where("id IN ?", notebookIDs).Find(&notebooks).Error; err != nil {
			return nil, fmt.Errorf("catalog: notebook lookup failed: %w", err)
		}
		for _, nb := range notebooks {
			notebookNames[nb.ID] = nb
		}
	}

	userIDs := make([]int64, 0, len(userNames))
	for id := range userNames {
		userIDs = append(userIDs, id)
	}
	var users []syncer.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("catalog: user lookup failed: %w", err)
	}
	for _, u := range users {
		userNames[u.ID] = u.Name
	}

	for _, note := range rows {
		view := NoteView{
			ID:              note.ID,
			Title:           note.Title,
			Preview:         truncatePreview(note.PlainText),
			Company:         note.Company,
			Tags:            []string{},
			SourceUser:      "Unknown",
			RemoteCreatedAt: note.RemoteCreatedAt,
			RemoteUpdatedAt: note.RemoteUpdatedAt,
		}
		if name := userNames[note.SourceUserID]; name != "" {
			view.SourceUser = name
		}
		if note.NotebookID != nil {
			nb := notebookNames[*note.NotebookID]
			view.NotebookName = nb.Name
			view.IsShared = nb.IsShared
			view.SharedFrom = nb.SharedFrom
		}

		var tagNames []string
		err := s.db.WithContext(ctx).Model(&syncer.Tag{}).
			Joins("JOIN note_tags ON note_tags.tag_id = tags.id").
			Where("note_tags.note_id = ?", note.ID).
			Order("tags.name ASC").
			Pluck("tags.name", &tagNames).Error
		if err != nil {
			return nil, fmt.Errorf("catalog: tag lookup failed: %w", err)
		}
		if tagNames != nil {
			view.Tags = tagNames
		}
		views = append(views, view)
	}
	return views, nil
}

// SyncHistory returns the user's most recent sync-log entries, newest
// first. Zero limit means 5.
func (s *Service) SyncHistory(ctx context.Context, userID int64, limit int) ([]syncer.SyncLog, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	var logs []syncer.SyncLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: sync history query failed: %w", err)
	}
	return logs, nil
}

// ToggleNotebookSync flips the user-controlled sync flag and returns
// the new state.
func (s *Service) ToggleNotebookSync(ctx context.Context, notebookID int64) (bool, error) {
	var notebook syncer.Notebook
	err := s.db.WithContext(ctx).Where("id = ?", notebookID).Take(&notebook).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrNotebookNotFound
	}
	if err != nil {
		return false, fmt.Errorf("catalog: notebook lookup failed: %w", err)
	}

	newState := !notebook.SyncEnabled
	err = s.db.WithContext(ctx).Model(&notebook).Update("sync_enabled", newState).Error
	if err != nil {
		return false, fmt.Errorf("catalog: notebook update failed: %w", err)
	}
	return newState, nil
}

func truncatePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes])
}
