package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var errMissingBaseURL = errors.New("remote: base url is required")

// HTTPFactory builds content clients against the note service's JSON
// gateway. One factory serves every user; clients carry the per-user
// token.
type HTTPFactory struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPFactory constructs the factory. A nil http.Client gets a
// 30-second default timeout; per-call deadlines beyond that belong to
// the caller's context.
func NewHTTPFactory(baseURL string, httpClient *http.Client) (*HTTPFactory, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errMissingBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFactory{baseURL: trimmed, httpClient: httpClient}, nil
}

// NewClient returns a ContentClient scoped to one user's token and shard.
func (f *HTTPFactory) NewClient(token, shard string) (ContentClient, error) {
	return &httpContent{
		factory: f,
		token:   token,
		shard:   shard,
	}, nil
}

type httpContent struct {
	factory *HTTPFactory
	token   string
	shard   string
}

type notebookPayload struct {
	GUID              string `json:"guid"`
	Name              string `json:"name"`
	Stack             string `json:"stack"`
	UpdateSequenceNum int32  `json:"update_sequence_num"`
}

type linkedNotebookPayload struct {
	GUID      string `json:"guid"`
	ShareName string `json:"share_name"`
	Username  string `json:"username"`
	ShardID   string `json:"shard_id"`
	ShareKey  string `json:"share_key"`
}

type sharedNotebookPayload struct {
	ID           int64  `json:"id"`
	NotebookGUID string `json:"notebook_guid"`
	Privilege    int    `json:"privilege"`
}

type noteMetaPayload struct {
	GUID          string   `json:"guid"`
	Title         string   `json:"title"`
	ContentLength int32    `json:"content_length"`
	CreatedMillis int64    `json:"created"`
	UpdatedMillis int64    `json:"updated"`
	TagGUIDs      []string `json:"tag_guids"`
}

type notePagePayload struct {
	Notes []noteMetaPayload `json:"notes"`
	Total int               `json:"total"`
}

type notePayload struct {
	GUID          string `json:"guid"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	ContentLength int32  `json:"content_length"`
	CreatedMillis int64  `json:"created"`
	UpdatedMillis int64  `json:"updated"`
	Attributes    struct {
		SourceURL string `json:"source_url"`
		Author    string `json:"author"`
	} `json:"attributes"`
}

func (c *httpContent) ListOwnNotebooks(ctx context.Context) ([]Notebook, error) {
	var payload []notebookPayload
	if err := c.getJSON(ctx, c.shardPath("notebooks"), nil, &payload); err != nil {
		return nil, err
	}
	notebooks := make([]Notebook, 0, len(payload))
	for _, nb := range payload {
		notebooks = append(notebooks, Notebook{
			GUID:              nb.GUID,
			Name:              nb.Name,
			Stack:             nb.Stack,
			UpdateSequenceNum: nb.UpdateSequenceNum,
		})
	}
	return notebooks, nil
}

func (c *httpContent) ListLinkedNotebooks(ctx context.Context) ([]LinkedNotebook, error) {
	var payload []linkedNotebookPayload
	if err := c.getJSON(ctx, c.shardPath("linked-notebooks"), nil, &payload); err != nil {
		return nil, err
	}
	linked := make([]LinkedNotebook, 0, len(payload))
	for _, lnb := range payload {
		linked = append(linked, LinkedNotebook{
			GUID:      lnb.GUID,
			ShareName: lnb.ShareName,
			Username:  lnb.Username,
			ShardID:   lnb.ShardID,
			ShareKey:  lnb.ShareKey,
		})
	}
	return linked, nil
}

func (c *httpContent) PrimarySession() Session {
	return &httpSession{content: c, shard: c.shard}
}

func (c *httpContent) OpenSharedStore(ctx context.Context, linked LinkedNotebook) (Session, SharedNotebook, error) {
	path := fmt.Sprintf("/shards/%s/shared-notebooks/%s", url.PathEscape(linked.ShardID), url.PathEscape(linked.ShareKey))
	var payload sharedNotebookPayload
	if err := c.getJSON(ctx, path, nil, &payload); err != nil {
		return nil, SharedNotebook{}, err
	}
	session := &httpSession{content: c, shard: linked.ShardID}
	return session, SharedNotebook{
		ID:           payload.ID,
		NotebookGUID: payload.NotebookGUID,
		Privilege:    payload.Privilege,
	}, nil
}

type httpSession struct {
	content *httpContent
	shard   string
}

func (s *httpSession) ListNoteMetadata(ctx context.Context, notebookGUID string, offset, pageSize int) ([]NoteMeta, int, error) {
	path := fmt.Sprintf("/shards/%s/notebooks/%s/notes", url.PathEscape(s.shard), url.PathEscape(notebookGUID))
	query := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(pageSize)},
	}
	var payload notePagePayload
	if err := s.content.getJSON(ctx, path, query, &payload); err != nil {
		return nil, 0, err
	}
	notes := make([]NoteMeta, 0, len(payload.Notes))
	for _, meta := range payload.Notes {
		notes = append(notes, NoteMeta{
			GUID:          meta.GUID,
			Title:         meta.Title,
			ContentLength: meta.ContentLength,
			CreatedAt:     TimeFromMillis(meta.CreatedMillis),
			UpdatedAt:     TimeFromMillis(meta.UpdatedMillis),
			TagGUIDs:      meta.TagGUIDs,
		})
	}
	return notes, payload.Total, nil
}

func (s *httpSession) FetchNote(ctx context.Context, noteGUID string) (Note, error) {
	path := fmt.Sprintf("/shards/%s/notes/%s", url.PathEscape(s.shard), url.PathEscape(noteGUID))
	var payload notePayload
	if err := s.content.getJSON(ctx, path, nil, &payload); err != nil {
		return Note{}, err
	}
	return Note{
		GUID:          payload.GUID,
		Title:         payload.Title,
		Content:       payload.Content,
		ContentLength: payload.ContentLength,
		CreatedAt:     TimeFromMillis(payload.CreatedMillis),
		UpdatedAt:     TimeFromMillis(payload.UpdatedMillis),
		Attributes: NoteAttributes{
			SourceURL: payload.Attributes.SourceURL,
			Author:    payload.Attributes.Author,
		},
	}, nil
}

func (s *httpSession) FetchTag(ctx context.Context, tagGUID string) (Tag, error) {
	path := fmt.Sprintf("/shards/%s/tags/%s", url.PathEscape(s.shard), url.PathEscape(tagGUID))
	var payload struct {
		GUID string `json:"guid"`
		Name string `json:"name"`
	}
	if err := s.content.getJSON(ctx, path, nil, &payload); err != nil {
		return Tag{}, err
	}
	return Tag{GUID: payload.GUID, Name: payload.Name}, nil
}

func (c *httpContent) shardPath(suffix string) string {
	return fmt.Sprintf("/shards/%s/%s", url.PathEscape(c.shard), suffix)
}

func (c *httpContent) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.factory.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Accept", "application/json")

	response, err := c.factory.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("remote: %s returned %d: %s", path, response.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(response.Body).Decode(out)
}
