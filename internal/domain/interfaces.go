package domain

import "context"

// DefaultWorkspaceID is used whenever no workspace is given.
const DefaultWorkspaceID = "default_workspace"

// Identifiers address a collection inside a workspace on the backend.
type Identifiers struct {
	WorkspaceID    string
	CollectionID   string
	CollectionName string
}

// Normalize fills the workspace sentinel and trims surrounding whitespace.
func (ids Identifiers) Normalize() Identifiers {
	out := Identifiers{
		WorkspaceID:    trim(ids.WorkspaceID),
		CollectionID:   trim(ids.CollectionID),
		CollectionName: trim(ids.CollectionName),
	}
	if out.WorkspaceID == "" {
		out.WorkspaceID = DefaultWorkspaceID
	}
	return out
}

// DisplayName is the collection label sent on upload; it falls back to the id.
func (ids Identifiers) DisplayName() string {
	if name := trim(ids.CollectionName); name != "" {
		return name
	}
	return trim(ids.CollectionID)
}

// Document is a local file turned into text ready for ingestion.
type Document struct {
	Path    string
	Name    string
	Content string
}

// UploadRequest is one multipart submission to the ingestion endpoint.
type UploadRequest struct {
	Identifiers Identifiers
	Document    Document
	Metadata    map[string]string
}

// QueryRequest carries a question against one collection.
// Limit only applies to semantic search.
type QueryRequest struct {
	Query        string
	WorkspaceID  string
	CollectionID string
	Limit        int
}

// Ingestor submits documents to the backend ingestion pipeline.
type Ingestor interface {
	Upload(ctx context.Context, req UploadRequest) (*IngestSummary, error)
}

// Retriever runs answer synthesis and raw semantic search.
type Retriever interface {
	Answer(ctx context.Context, req QueryRequest) (*AnswerResult, error)
	Search(ctx context.Context, req QueryRequest) ([]SearchResult, error)
}

// DocumentLoader turns a file on disk into text.
type DocumentLoader interface {
	Load(path string) (Document, error)
}
