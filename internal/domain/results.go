package domain

import (
	"fmt"
	"strings"
)

// Entity is a graph node mentioned by a chunk.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Relationship is a typed edge between two entities.
type Relationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// SearchResult represents a matching chunk with its similarity and optional rerank score.
type SearchResult struct {
	ChunkID       string         `json:"chunk_id"`
	Content       string         `json:"content"`
	Score         float64        `json:"score"`
	RerankScore   *float64       `json:"rerank_score,omitempty"`
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	DocumentID    string         `json:"document_id,omitempty"`
	Filename      string         `json:"filename,omitempty"`
	ChunkIndex    *int           `json:"chunk_index,omitempty"`
}

// DisplayScore prefers the rerank score when a reranking stage produced one.
func (r SearchResult) DisplayScore() float64 {
	if r.RerankScore != nil {
		return *r.RerankScore
	}
	return r.Score
}

// Preview returns at most limit characters of the content. The content itself is never modified.
func (r SearchResult) Preview(limit int) string {
	runes := []rune(r.Content)
	if limit <= 0 || len(runes) <= limit {
		return r.Content
	}
	return string(runes[:limit]) + "..."
}

// EntityChips lists up to limit non-empty entity names in backend order.
func (r SearchResult) EntityChips(limit int) []string {
	chips := make([]string, 0, limit)
	for _, e := range r.Entities {
		if len(chips) >= limit {
			break
		}
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		chips = append(chips, e.Name)
	}
	return chips
}

// AnswerResult is the synthesized answer. Context and Sources are retained but not rendered.
type AnswerResult struct {
	Query       string         `json:"query,omitempty"`
	Answer      string         `json:"answer"`
	Context     string         `json:"context"`
	KeyEntities []string       `json:"key_entities"`
	Sources     []SearchResult `json:"sources"`
}

// IngestSummary is what the backend reports after processing an upload.
type IngestSummary struct {
	Status        string `json:"status,omitempty"`
	WorkspaceID   string `json:"workspace_id,omitempty"`
	CollectionID  string `json:"collection_id,omitempty"`
	Chunks        int    `json:"chunks"`
	Entities      int    `json:"entities"`
	Relationships int    `json:"relationships,omitempty"`
}

// UploadState enumerates upload feedback states.
type UploadState int

const (
	UploadIdle UploadState = iota
	UploadInProgress
	UploadSucceeded
	UploadFailed
)

// UploadStatus is user feedback for the last upload. It never gates querying.
type UploadStatus struct {
	State         UploadState
	Chunks        int
	Entities      int
	Relationships int
	Reason        string
}

func (s UploadStatus) String() string {
	switch s.State {
	case UploadInProgress:
		return "Uploading..."
	case UploadSucceeded:
		return fmt.Sprintf("Success! Created %d chunks, %d entities", s.Chunks, s.Entities)
	case UploadFailed:
		return "Upload failed"
	default:
		return ""
	}
}

func trim(s string) string { return strings.TrimSpace(s) }
