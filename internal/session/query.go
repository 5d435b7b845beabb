package session

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"graphrag/internal/backend"
	"graphrag/internal/domain"
)

// DefaultSearchLimit is the number of source chunks requested per query.
const DefaultSearchLimit = 10

// AnswerMsg delivers the answer sub-request outcome for one generation.
type AnswerMsg struct {
	Generation uint64
	Answer     *domain.AnswerResult
	Err        error
}

// SearchMsg delivers the search sub-request outcome for one generation.
type SearchMsg struct {
	Generation uint64
	Results    []domain.SearchResult
	Err        error
}

// QueryCoordinator fires answer synthesis and semantic search side by side and joins them.
type QueryCoordinator struct {
	store     *Store
	retriever domain.Retriever
	limit     int
	log       *zap.Logger
	reporter  Reporter
}

// NewQueryCoordinator wires a coordinator to the store it writes into.
func NewQueryCoordinator(store *Store, retriever domain.Retriever, limit int, log *zap.Logger, reporter Reporter) *QueryCoordinator {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &QueryCoordinator{store: store, retriever: retriever, limit: limit, log: log.Named("query"), reporter: reporter}
}

// Submit validates input, switches the store to loading and returns the batch of both requests.
// On a validation error nothing is sent and the store is left untouched.
func (c *QueryCoordinator) Submit(ctx context.Context, query string) (tea.Cmd, error) {
	query = strings.TrimSpace(query)
	ids := c.store.Identifiers()
	if query == "" {
		return nil, &domain.ValidationError{Field: "query", Message: "Please enter a query and collection ID"}
	}
	if ids.CollectionID == "" {
		return nil, &domain.ValidationError{Field: "collection_id", Message: "Please enter a query and collection ID"}
	}

	gen := c.store.beginQuery(query)
	req := domain.QueryRequest{
		Query:        query,
		WorkspaceID:  ids.WorkspaceID,
		CollectionID: ids.CollectionID,
		Limit:        c.limit,
	}
	c.log.Info("query submitted",
		zap.Uint64("generation", gen),
		zap.String("workspace_id", req.WorkspaceID),
		zap.String("collection_id", req.CollectionID),
	)

	answer := func() tea.Msg {
		res, err := c.retriever.Answer(ctx, req)
		return AnswerMsg{Generation: gen, Answer: res, Err: err}
	}
	search := func() tea.Msg {
		res, err := c.retriever.Search(ctx, req)
		return SearchMsg{Generation: gen, Results: res, Err: err}
	}
	return tea.Batch(answer, search), nil
}

// Handle applies a completion message. It reports whether msg belonged to this coordinator.
func (c *QueryCoordinator) Handle(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case AnswerMsg:
		err := c.wrap("answer", msg.Err)
		applied := c.store.settle(msg.Generation, func(q *QueryState) {
			if err == nil {
				q.Answer = msg.Answer
			}
		})
		c.observe("answer", msg.Generation, applied, err)
		return true
	case SearchMsg:
		err := c.wrap("search", msg.Err)
		applied := c.store.settle(msg.Generation, func(q *QueryState) {
			if err == nil {
				q.Results = msg.Results
				q.resultsSet = true
			}
		})
		c.observe("search", msg.Generation, applied, err)
		return true
	}
	return false
}

func (c *QueryCoordinator) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.QueryError{Op: op, StatusCode: backend.StatusCode(err), Err: err}
}

func (c *QueryCoordinator) observe(op string, gen uint64, applied bool, err error) {
	fields := []zap.Field{zap.String("op", op), zap.Uint64("generation", gen)}
	if !applied {
		c.log.Debug("discarding stale completion", fields...)
		return
	}
	if err != nil {
		c.log.Error("query sub-request failed", append(fields, zap.Error(err))...)
		c.reporter.Capture(err, map[string]string{"op": op})
		return
	}
	c.log.Debug("query sub-request settled", fields...)
}
