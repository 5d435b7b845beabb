package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the graphrag command tree. Without a subcommand it starts the TUI.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "graphrag",
		Short: "Graph RAG client - upload documents and query a knowledge graph backend",
		Long: `graphrag uploads documents to a Graph RAG backend and asks questions against a collection.

Environment variables:
  GRAPHRAG_API_URL         Backend base URL (default: http://localhost:8000)
  GRAPHRAG_WORKSPACE_ID    Workspace (default: default_workspace)
  GRAPHRAG_COLLECTION_ID   Collection to upload to and query
  GRAPHRAG_SENTRY_DSN      Enables error reporting to Sentry`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to YAML config file (default: ./graphrag.yaml or ~/.config/graphrag/config.yaml)")
	flags.String("api-url", "", "Backend base URL (overrides env and config)")
	flags.StringP("workspace", "w", "", "Workspace ID (overrides env and config)")
	flags.StringP("collection", "c", "", "Collection ID (overrides env and config)")
	flags.String("collection-name", "", "Collection display name used on upload")
	flags.Bool("output", false, "Output as JSON")
	flags.BoolP("verbose", "v", false, "Mirror logs to stderr")

	rootCmd.AddCommand(TUICmd())
	rootCmd.AddCommand(UploadCmd())
	rootCmd.AddCommand(AskCmd())
	rootCmd.AddCommand(CollectionCmd())
	rootCmd.AddCommand(HealthCmd())
	rootCmd.AddCommand(WatchCmd())
	rootCmd.AddCommand(MCPCmd())

	return rootCmd
}
