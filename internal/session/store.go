// Package session holds the view state of one client session and the coordinators
// that turn user actions into backend requests.
//
// All mutation happens on the Bubble Tea update loop: coordinators return tea.Cmd values
// that perform I/O elsewhere and report back with messages, which are applied with Handle.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"graphrag/internal/domain"
)

// Phase is the explicit query state: Idle, Loading or Settled.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSettled:
		return "settled"
	default:
		return "idle"
	}
}

// QueryState is the outcome of the latest query. Answer and Results only ever hold
// data for Generation; a new submission replaces the whole value.
type QueryState struct {
	Phase      Phase
	Query      string
	Generation uint64
	Answer     *domain.AnswerResult
	Results    []domain.SearchResult

	resultsSet bool
	pending    int
}

// IsLoading reports whether either sub-request of the current query is still in flight.
func (q QueryState) IsLoading() bool { return q.Phase == PhaseLoading }

// HasAnswer reports whether the answer arrived.
func (q QueryState) HasAnswer() bool { return q.Answer != nil }

// HasResults reports whether the search results arrived. An empty list still counts.
func (q QueryState) HasResults() bool { return q.resultsSet }

// PendingUpload is the single file selected for upload.
type PendingUpload struct {
	Path string
	Name string
	Size int64

	// Identifiers snapshot taken when the upload was submitted.
	Identifiers domain.Identifiers
	token       uint64
}

// Store is the view state shared by the coordinators and the renderer.
// Readers use the accessors; only the coordinators in this package write query and upload state.
type Store struct {
	ids     domain.Identifiers
	pending *PendingUpload
	upload  domain.UploadStatus
	query   QueryState

	nextGeneration uint64
	nextUpload     uint64
}

// NewStore creates a store seeded with the given identifiers.
func NewStore(ids domain.Identifiers) *Store {
	return &Store{ids: ids.Normalize()}
}

func (s *Store) Identifiers() domain.Identifiers { return s.ids }

func (s *Store) Query() QueryState { return s.query }

func (s *Store) UploadStatus() domain.UploadStatus { return s.upload }

// PendingUpload returns a copy of the selected file, or nil when none is chosen.
func (s *Store) PendingUpload() *PendingUpload {
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// SetIdentifiers records user input for workspace, collection and collection name.
func (s *Store) SetIdentifiers(ids domain.Identifiers) {
	s.ids = ids.Normalize()
}

// SelectFile replaces the pending upload with the file at path.
func (s *Store) SelectFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to select file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("failed to select file: %s is a directory", path)
	}
	s.pending = &PendingUpload{Path: path, Name: filepath.Base(path), Size: info.Size()}
	return nil
}

// ClearFile drops the pending upload.
func (s *Store) ClearFile() {
	s.pending = nil
}

// View is the rendering mode derived from the query state.
type View int

const (
	ViewEmpty View = iota
	ViewLoading
	ViewResults
)

// View derives what the renderer should show.
func (s *Store) View() View {
	q := s.query
	switch {
	case q.IsLoading():
		return ViewLoading
	case q.HasAnswer() || q.HasResults():
		return ViewResults
	default:
		return ViewEmpty
	}
}

func (s *Store) beginQuery(query string) uint64 {
	s.nextGeneration++
	s.query = QueryState{
		Phase:      PhaseLoading,
		Query:      query,
		Generation: s.nextGeneration,
		pending:    2,
	}
	return s.nextGeneration
}

// settle records one finished sub-request of gen. It reports false for a superseded generation.
func (s *Store) settle(gen uint64, apply func(q *QueryState)) bool {
	if gen != s.query.Generation || s.query.Phase != PhaseLoading {
		return false
	}
	if apply != nil {
		apply(&s.query)
	}
	s.query.pending--
	if s.query.pending <= 0 {
		s.query.pending = 0
		s.query.Phase = PhaseSettled
	}
	return true
}

func (s *Store) beginUpload() (PendingUpload, uint64) {
	s.nextUpload++
	s.pending.Identifiers = s.ids
	s.pending.token = s.nextUpload
	s.upload = domain.UploadStatus{State: domain.UploadInProgress}
	return *s.pending, s.nextUpload
}

func (s *Store) finishUpload(token uint64, status domain.UploadStatus) {
	s.upload = status
	if status.State == domain.UploadSucceeded && s.pending != nil && s.pending.token == token {
		s.pending = nil
	}
}
