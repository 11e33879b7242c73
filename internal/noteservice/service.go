// Package noteservice coordinates vault storage, the search index, and the
// live editing sessions.
package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/session"
	"github.com/starford/ansuz/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path          string    `json:"path"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Checksum      string    `json:"checksum"`
	Citations     []string  `json:"citations"`
	SchemaVersion int       `json:"schema_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionEventFunc receives editor session events for forwarding to
// connected clients. path identifies the note the session belongs to.
type SessionEventFunc func(path string, ev session.Event)

// Config carries service-wide tunables.
type Config struct {
	// AutosaveDelay and AutosaveMax are passed to every new session.
	// Zero values use the session defaults.
	AutosaveDelay time.Duration
	AutosaveMax   time.Duration
	// OnSessionEvent, when set, receives non-persistence session events.
	OnSessionEvent SessionEventFunc
	Logger         *slog.Logger
}

// Service coordinates storage, index, and session operations.
type Service struct {
	store storage.Provider
	db    *index.DB
	cfg   Config
	log   *slog.Logger

	mu        sync.Mutex
	sessions  map[string]*session.Session
	lastSaved map[string]string // path -> checksum of our own last write
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		db:        db,
		cfg:       cfg,
		log:       log,
		sessions:  make(map[string]*session.Session),
		lastSaved: make(map[string]string),
	}
}

// GetNote reads a note from storage and parses it.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return buildNoteDetail(path, data)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.writeAndIndex(path, content); err != nil {
		return nil, err
	}
	return buildNoteDetail(path, content)
}

// UpdateNote writes updated content with optimistic concurrency.
func (s *Service) UpdateNote(ctx context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.writeAndIndex(path, content); err != nil {
		return nil, err
	}

	// A direct write supersedes whatever an open session holds; merge the
	// new content into it rather than leaving the two views diverged.
	if sess := s.getSession(path); sess != nil {
		s.mergeIntoSession(path, sess, content)
	}
	return buildNoteDetail(path, content)
}

// DeleteNote removes a note from storage and index, closing any open session.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	s.dropSession(path)
	if err := s.store.Delete(path); err != nil {
		return err
	}
	return s.db.DeleteNote(path)
}

// ListNotes returns paginated notes.
func (s *Service) ListNotes(_ context.Context, limit, offset int, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// NotesCiting returns the paths of notes citing the given URI.
func (s *Service) NotesCiting(_ context.Context, uri string) ([]string, error) {
	paths, err := s.db.NotesCiting(uri)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(paths), nil
}

// OpenSession returns the live session for path, creating one from the
// stored note if needed.
func (s *Service) OpenSession(_ context.Context, path string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[path]; ok {
		return sess, nil
	}

	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	sess, err := session.New(session.Config{
		Data:          session.NoteData{HTML: string(data)},
		Events:        s.sessionSink(path),
		AutosaveDelay: s.cfg.AutosaveDelay,
		AutosaveMax:   s.cfg.AutosaveMax,
		Logger:        s.log.With(slog.String("note", path)),
	})
	if err != nil {
		return nil, err
	}
	s.sessions[path] = sess
	s.lastSaved[path] = checksum.Sum(data)
	return sess, nil
}

// Session returns the open session for path, or nil.
func (s *Service) Session(path string) *session.Session {
	return s.getSession(path)
}

// CloseSession flushes and destroys the session for path, if open.
func (s *Service) CloseSession(_ context.Context, path string) {
	s.dropSession(path)
}

// CloseAll destroys every open session. Used during shutdown.
func (s *Service) CloseAll() {
	s.mu.Lock()
	paths := make([]string, 0, len(s.sessions))
	for p := range s.sessions {
		paths = append(paths, p)
	}
	s.mu.Unlock()
	for _, p := range paths {
		s.dropSession(p)
	}
}

// HandleExternalChange reacts to a watcher event for path. Open sessions get
// the changed content merged in place; everything else is already handled by
// the watcher's own index update.
func (s *Service) HandleExternalChange(kind, path string) {
	sess := s.getSession(path)
	if sess == nil {
		return
	}

	if kind == "deleted" {
		s.log.Info("note deleted externally, closing session", slog.String("path", path))
		s.dropSession(path)
		return
	}

	data, err := s.store.Read(path)
	if err != nil {
		s.log.Warn("external change read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	// Our own autosaves come back through the watcher; the checksum tells
	// them apart from genuinely external edits.
	s.mu.Lock()
	own := s.lastSaved[path] == checksum.Sum(data)
	s.mu.Unlock()
	if own {
		return
	}

	s.mergeIntoSession(path, sess, data)
}

// mergeIntoSession applies changed content to a live session, falling back
// to a session reload when the incremental merge fails.
func (s *Service) mergeIntoSession(path string, sess *session.Session, data []byte) {
	err := sess.ApplyExternalChanges(session.NoteData{HTML: string(data)}, true)
	if err == nil {
		s.log.Debug("external change merged", slog.String("path", path))
		return
	}
	s.log.Warn("incremental update failed, reloading session",
		slog.String("path", path), slog.String("error", err.Error()))
	s.dropSession(path)
	if _, err := s.OpenSession(context.Background(), path); err != nil {
		s.log.Warn("session reload failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// sessionSink builds the event sink wired into a session: persistence events
// are written back to the vault, everything else is forwarded to the host.
func (s *Service) sessionSink(path string) session.Sink {
	return func(ev session.Event) {
		if ev.Name == session.EventUpdate {
			data, ok := ev.Data.(*session.NoteData)
			if !ok || data == nil {
				return
			}
			s.persist(path, data)
			return
		}
		if s.cfg.OnSessionEvent != nil {
			s.cfg.OnSessionEvent(path, ev)
		}
	}
}

// persist writes session output to the vault and refreshes the index.
func (s *Service) persist(path string, data *session.NoteData) {
	content := []byte(data.HTML)
	s.mu.Lock()
	s.lastSaved[path] = checksum.Sum(content)
	s.mu.Unlock()

	if err := s.store.Write(path, content); err != nil {
		s.log.Error("autosave write failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if err := index.IndexFile(s.db, path, content); err != nil {
		s.log.Warn("autosave index failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// writeAndIndex stores content and updates the index, recording the checksum
// so the watcher does not echo the write back into an open session.
func (s *Service) writeAndIndex(path string, content []byte) error {
	s.mu.Lock()
	s.lastSaved[path] = checksum.Sum(content)
	s.mu.Unlock()
	if err := s.store.Write(path, content); err != nil {
		return err
	}
	return index.IndexFile(s.db, path, content)
}

func (s *Service) getSession(path string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[path]
}

func (s *Service) dropSession(path string) {
	s.mu.Lock()
	sess := s.sessions[path]
	delete(s.sessions, path)
	s.mu.Unlock()
	if sess != nil {
		sess.Destroy()
	}
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:          path,
		Title:         res.Title,
		Content:       string(data),
		Checksum:      checksum.Sum(data),
		Citations:     nonNilSlice(res.Citations),
		SchemaVersion: res.SchemaVersion,
		UpdatedAt:     time.Now(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
