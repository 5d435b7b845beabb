package session

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"graphrag/internal/backend"
	"graphrag/internal/domain"
)

// UploadMsg delivers the outcome of one upload.
type UploadMsg struct {
	Token   uint64
	Path    string
	Summary *domain.IngestSummary
	Err     error
}

// UploadCoordinator validates and submits the pending file to the ingestion endpoint.
type UploadCoordinator struct {
	store    *Store
	loader   domain.DocumentLoader
	ingestor domain.Ingestor
	log      *zap.Logger
	reporter Reporter
}

// NewUploadCoordinator wires a coordinator to the store it writes into.
func NewUploadCoordinator(store *Store, loader domain.DocumentLoader, ingestor domain.Ingestor, log *zap.Logger, reporter Reporter) *UploadCoordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &UploadCoordinator{store: store, loader: loader, ingestor: ingestor, log: log.Named("upload"), reporter: reporter}
}

// Submit validates the pending file and identifiers, marks the upload in progress and returns
// the command performing it. metadata is optional and sent as a JSON form field.
func (c *UploadCoordinator) Submit(ctx context.Context, metadata map[string]string) (tea.Cmd, error) {
	pending := c.store.PendingUpload()
	ids := c.store.Identifiers()
	if pending == nil || pending.Size == 0 {
		return nil, &domain.ValidationError{Field: "file", Message: "Please select a file and enter collection info"}
	}
	if ids.CollectionID == "" {
		return nil, &domain.ValidationError{Field: "collection_id", Message: "Please select a file and enter collection info"}
	}

	upload, token := c.store.beginUpload()
	c.log.Info("upload submitted",
		zap.String("file", upload.Name),
		zap.String("workspace_id", upload.Identifiers.WorkspaceID),
		zap.String("collection_id", upload.Identifiers.CollectionID),
	)

	return func() tea.Msg {
		summary, err := UploadDocument(ctx, c.loader, c.ingestor, upload.Identifiers, upload.Path, metadata)
		return UploadMsg{Token: token, Path: upload.Path, Summary: summary, Err: err}
	}, nil
}

// Handle applies an UploadMsg. It reports whether msg belonged to this coordinator.
func (c *UploadCoordinator) Handle(msg tea.Msg) bool {
	m, ok := msg.(UploadMsg)
	if !ok {
		return false
	}
	if m.Err != nil {
		c.log.Error("upload failed", zap.String("file", m.Path), zap.Error(m.Err))
		c.reporter.Capture(m.Err, map[string]string{"op": "upload"})
		c.store.finishUpload(m.Token, domain.UploadStatus{State: domain.UploadFailed, Reason: m.Err.Error()})
		return true
	}
	c.log.Info("upload finished",
		zap.String("file", m.Path),
		zap.Int("chunks", m.Summary.Chunks),
		zap.Int("entities", m.Summary.Entities),
	)
	c.store.finishUpload(m.Token, domain.UploadStatus{
		State:         domain.UploadSucceeded,
		Chunks:        m.Summary.Chunks,
		Entities:      m.Summary.Entities,
		Relationships: m.Summary.Relationships,
	})
	return true
}

// Run submits and waits for one upload on the calling goroutine. It is meant for headless callers.
func (c *UploadCoordinator) Run(ctx context.Context, metadata map[string]string) (domain.UploadStatus, error) {
	cmd, err := c.Submit(ctx, metadata)
	if err != nil {
		return c.store.UploadStatus(), err
	}
	msg := cmd().(UploadMsg)
	c.Handle(msg)
	return c.store.UploadStatus(), msg.Err
}

// UploadDocument loads path as text and posts it. Every failure is returned as *domain.UploadError.
func UploadDocument(ctx context.Context, loader domain.DocumentLoader, ingestor domain.Ingestor, ids domain.Identifiers, path string, metadata map[string]string) (*domain.IngestSummary, error) {
	doc, err := loader.Load(path)
	if err != nil {
		return nil, &domain.UploadError{Err: fmt.Errorf("failed to read %s: %w", path, err)}
	}
	summary, err := ingestor.Upload(ctx, domain.UploadRequest{Identifiers: ids, Document: doc, Metadata: metadata})
	if err != nil {
		var uploadErr *domain.UploadError
		if errors.As(err, &uploadErr) {
			return nil, err
		}
		return nil, &domain.UploadError{StatusCode: backend.StatusCode(err), Err: err}
	}
	return summary, nil
}
