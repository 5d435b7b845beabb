package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"graphrag/internal/config"
	"graphrag/internal/domain"
	"graphrag/internal/session"
)

// askModel drives one query through the same coordinator the TUI uses, without rendering.
type askModel struct {
	queries *session.QueryCoordinator
	store   *session.Store
	start   tea.Cmd
	errs    []error
}

func (m *askModel) Init() tea.Cmd { return m.start }

func (m *askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case session.AnswerMsg:
		if msg.Err != nil {
			m.errs = append(m.errs, fmt.Errorf("answer: %w", msg.Err))
		}
	case session.SearchMsg:
		if msg.Err != nil {
			m.errs = append(m.errs, fmt.Errorf("search: %w", msg.Err))
		}
	default:
		return m, nil
	}
	m.queries.Handle(msg)
	if !m.store.Query().IsLoading() {
		return m, tea.Quit
	}
	return m, nil
}

func (m *askModel) View() string { return "" }

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask a question and print the answer with its source chunks",
		Long:  "Runs answer synthesis and semantic search concurrently against the collection and prints both.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("limit") {
				if err := config.ValidateSearchLimit(limit); err != nil {
					return fmt.Errorf("--limit %w", err)
				}
			}
			a, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer a.close()
			if limit > 0 {
				a.cfg.SearchLimit = limit
			}
			return runAsk(cmd, a, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of source chunks (default from config)")

	return cmd
}

func runAsk(cmd *cobra.Command, a *app, query string) error {
	store := session.NewStore(a.identifiers())
	queries := session.NewQueryCoordinator(store, a.client, a.cfg.SearchLimit, a.log, a.reporter)

	start, err := queries.Submit(cmd.Context(), query)
	if err != nil {
		return err
	}

	model := &askModel{queries: queries, store: store, start: start}
	p := tea.NewProgram(model,
		tea.WithContext(cmd.Context()),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("query interrupted: %w", err)
	}

	q := store.Query()
	if q.Answer == nil && !q.HasResults() {
		if err := errors.Join(model.errs...); err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		return errors.New("query failed: no answer or sources returned")
	}

	if a.jsonOut {
		return a.printJSON(struct {
			Query   string                `json:"query"`
			Answer  *domain.AnswerResult  `json:"answer"`
			Results []domain.SearchResult `json:"results"`
			Errors  []string              `json:"errors,omitempty"`
		}{q.Query, q.Answer, q.Results, errorStrings(model.errs)})
	}

	printAnswer(a, q, model.errs)
	return nil
}

func printAnswer(a *app, q session.QueryState, errs []error) {
	a.printf("Answer\n")
	if q.Answer != nil {
		a.printf("  %s\n", q.Answer.Answer)
		if len(q.Answer.KeyEntities) > 0 {
			a.printf("  Key entities: %s\n", strings.Join(q.Answer.KeyEntities, ", "))
		}
	} else {
		a.printf("  (unavailable)\n")
	}

	a.printf("\nSource Documents\n")
	switch {
	case !q.HasResults():
		a.printf("  (unavailable)\n")
	case len(q.Results) == 0:
		a.printf("  No matching sources.\n")
	}
	for i, r := range q.Results {
		a.printf("%d. Score: %.3f", i+1, r.DisplayScore())
		if r.Filename != "" {
			a.printf("  %s", r.Filename)
		}
		a.printf("\n   %s\n", r.Preview(a.cfg.PreviewChars))
		if chips := r.EntityChips(a.cfg.MaxEntityChips); len(chips) > 0 {
			a.printf("   Entities: %s\n", strings.Join(chips, ", "))
		}
	}

	for _, err := range errs {
		a.printf("\nwarning: %v\n", err)
	}
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
