package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graphrag/internal/session"
	"graphrag/internal/tui"
)

// TUICmd creates the tui command. It is also what the bare root command runs.
func TUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd)
		},
	}
}

func runTUI(cmd *cobra.Command) error {
	a, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	store := session.NewStore(a.identifiers())
	queries := session.NewQueryCoordinator(store, a.client, a.cfg.SearchLimit, a.log, a.reporter)
	uploads := session.NewUploadCoordinator(store, a.reader, a.client, a.log, a.reporter)
	model := tui.New(cmd.Context(), store, queries, uploads, tui.Options{
		PreviewChars:   a.cfg.PreviewChars,
		MaxEntityChips: a.cfg.MaxEntityChips,
	})

	a.log.Info("starting tui", zap.String("api_url", a.client.BaseURL()))
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}
