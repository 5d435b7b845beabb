package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"graphrag/internal/backend"
	"graphrag/internal/domain"
	"graphrag/internal/reader"
)

type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) Upload(ctx context.Context, req domain.UploadRequest) (*domain.IngestSummary, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestSummary), args.Error(1)
}

type fileLoader struct{}

func (fileLoader) Load(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{Path: path, Name: filepath.Base(path), Content: string(data)}, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadCoordinator_ScenarioA_NameDefaultsToCollectionID(t *testing.T) {
	ing := new(MockIngestor)
	ing.On("Upload", mock.Anything, mock.MatchedBy(func(req domain.UploadRequest) bool {
		return req.Identifiers.CollectionID == "docs1" &&
			req.Identifiers.DisplayName() == "docs1" &&
			req.Identifiers.WorkspaceID == domain.DefaultWorkspaceID &&
			req.Document.Name == "notes.txt" &&
			req.Document.Content == "graph text"
	})).Return(&domain.IngestSummary{Chunks: 4, Entities: 9}, nil).Once()

	store := NewStore(domain.Identifiers{CollectionID: "docs1"})
	require.NoError(t, store.SelectFile(writeFile(t, "notes.txt", "graph text")))
	uc := NewUploadCoordinator(store, fileLoader{}, ing, nil, nil)

	cmd, err := uc.Submit(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadInProgress, store.UploadStatus().State)
	assert.NotNil(t, store.PendingUpload(), "file stays selected while uploading")

	assert.True(t, uc.Handle(cmd()))

	status := store.UploadStatus()
	assert.Equal(t, domain.UploadSucceeded, status.State)
	assert.Equal(t, 4, status.Chunks)
	assert.Equal(t, 9, status.Entities)
	assert.Nil(t, store.PendingUpload(), "file reference is released on success")
	ing.AssertExpectations(t)
}

func TestUploadCoordinator_ValidationMakesNoCalls(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, s *Store)
		field string
	}{
		{
			name:  "no file",
			setup: func(t *testing.T, s *Store) {},
			field: "file",
		},
		{
			name: "empty file",
			setup: func(t *testing.T, s *Store) {
				require.NoError(t, s.SelectFile(writeFile(t, "empty.txt", "")))
			},
			field: "file",
		},
		{
			name: "no collection",
			setup: func(t *testing.T, s *Store) {
				require.NoError(t, s.SelectFile(writeFile(t, "a.txt", "text")))
				s.SetIdentifiers(domain.Identifiers{WorkspaceID: "ws"})
			},
			field: "collection_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := new(MockIngestor)
			store := NewStore(domain.Identifiers{CollectionID: "docs1"})
			tt.setup(t, store)
			uc := NewUploadCoordinator(store, fileLoader{}, ing, nil, nil)

			cmd, err := uc.Submit(context.Background(), nil)
			assert.Nil(t, cmd)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, domain.UploadIdle, store.UploadStatus().State)
			ing.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
		})
	}
}

func TestUploadCoordinator_BackendFailure(t *testing.T) {
	ing := new(MockIngestor)
	ing.On("Upload", mock.Anything, mock.Anything).Return(nil, &backend.APIError{StatusCode: 500, Message: "boom"}).Once()
	reporter := &recordingReporter{}

	store := NewStore(domain.Identifiers{CollectionID: "docs1"})
	path := writeFile(t, "a.txt", "text")
	require.NoError(t, store.SelectFile(path))
	uc := NewUploadCoordinator(store, fileLoader{}, ing, nil, reporter)

	status, err := uc.Run(context.Background(), nil)
	require.Error(t, err)
	var ue *domain.UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 500, ue.StatusCode)

	assert.Equal(t, domain.UploadFailed, status.State)
	assert.Equal(t, "Upload failed", status.String())
	require.NotNil(t, store.PendingUpload(), "file stays selected so the user can retry")
	assert.Equal(t, path, store.PendingUpload().Path)
	assert.Len(t, reporter.errs, 1)
	ing.AssertNumberOfCalls(t, "Upload", 1)
}

func TestUploadCoordinator_UnreadableFile(t *testing.T) {
	ing := new(MockIngestor)
	store := NewStore(domain.Identifiers{CollectionID: "docs1"})
	path := writeFile(t, "a.txt", "text")
	require.NoError(t, store.SelectFile(path))
	require.NoError(t, os.Remove(path))

	uc := NewUploadCoordinator(store, fileLoader{}, ing, nil, nil)
	status, err := uc.Run(context.Background(), nil)

	var ue *domain.UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, domain.UploadFailed, status.State)
	ing.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestUploadCoordinator_NewSelectionSurvivesEarlierSuccess(t *testing.T) {
	ing := new(MockIngestor)
	ing.On("Upload", mock.Anything, mock.Anything).Return(&domain.IngestSummary{Chunks: 1, Entities: 1}, nil)

	store := NewStore(domain.Identifiers{CollectionID: "docs1"})
	require.NoError(t, store.SelectFile(writeFile(t, "a.txt", "first")))
	uc := NewUploadCoordinator(store, fileLoader{}, ing, nil, nil)

	cmd, err := uc.Submit(context.Background(), nil)
	require.NoError(t, err)

	second := writeFile(t, "b.txt", "second")
	require.NoError(t, store.SelectFile(second))
	uc.Handle(cmd())

	assert.Equal(t, domain.UploadSucceeded, store.UploadStatus().State)
	require.NotNil(t, store.PendingUpload())
	assert.Equal(t, second, store.PendingUpload().Path)
}

func TestUploadCoordinator_MetadataAndSnapshot(t *testing.T) {
	ing := new(MockIngestor)
	ing.On("Upload", mock.Anything, mock.MatchedBy(func(req domain.UploadRequest) bool {
		return req.Identifiers.CollectionID == "docs1" && req.Metadata["source"] == "cli"
	})).Return(&domain.IngestSummary{}, nil).Once()

	store := NewStore(domain.Identifiers{CollectionID: "docs1"})
	require.NoError(t, store.SelectFile(writeFile(t, "a.txt", "x")))
	uc := NewUploadCoordinator(store, fileLoader{}, ing, nil, nil)

	cmd, err := uc.Submit(context.Background(), map[string]string{"source": "cli"})
	require.NoError(t, err)

	// identifiers changed after submission do not affect the request in flight
	store.SetIdentifiers(domain.Identifiers{CollectionID: "other"})
	uc.Handle(cmd())
	ing.AssertExpectations(t)
}

func TestStore_SelectFile(t *testing.T) {
	store := NewStore(domain.Identifiers{})
	assert.Error(t, store.SelectFile(filepath.Join(t.TempDir(), "missing.txt")))
	assert.Error(t, store.SelectFile(t.TempDir()))
	assert.Nil(t, store.PendingUpload())

	path := writeFile(t, "a.txt", "abc")
	require.NoError(t, store.SelectFile(path))
	p := store.PendingUpload()
	require.NotNil(t, p)
	assert.Equal(t, "a.txt", p.Name)
	assert.Equal(t, int64(3), p.Size)

	store.ClearFile()
	assert.Nil(t, store.PendingUpload())
}

func TestUploadDocument_KeepsUploadError(t *testing.T) {
	ing := new(MockIngestor)
	orig := &domain.UploadError{StatusCode: 418, Err: errors.New("teapot")}
	ing.On("Upload", mock.Anything, mock.Anything).Return(nil, orig)

	_, err := UploadDocument(context.Background(), fileLoader{}, ing, domain.Identifiers{CollectionID: "c"}, writeFile(t, "a.txt", "x"), nil)
	assert.Same(t, orig, err)
}

func TestUploadCoordinator_UnknownExtensionTextIsPosted(t *testing.T) {
	for _, name := range []string{"README", "notes.rst", "paper.tex"} {
		t.Run(name, func(t *testing.T) {
			var posts int
			var filename string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				posts++
				if _, fh, err := r.FormFile("file"); err == nil {
					filename = fh.Filename
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"success","chunks":1,"entities":2}`))
			}))
			defer srv.Close()

			store := NewStore(domain.Identifiers{CollectionID: "docs1"})
			require.NoError(t, store.SelectFile(writeFile(t, name, "some plain text")))
			client := backend.NewClient(backend.Config{BaseURL: srv.URL}, nil)
			uc := NewUploadCoordinator(store, reader.New(), client, nil, nil)

			status, err := uc.Run(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, 1, posts)
			assert.Equal(t, name, filename)
			assert.Equal(t, domain.UploadSucceeded, status.State)
			assert.Nil(t, store.PendingUpload())
		})
	}
}
