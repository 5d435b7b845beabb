package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"graphrag/internal/domain"
	"graphrag/internal/session"
)

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var meta []string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document into the collection",
		Long: `Uploads a document for chunking, entity extraction and indexing.

Plain text files are sent as-is; PDF, Word, ODT, RTF and HTML files are converted to text first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer a.close()
			return runUpload(cmd, a, args[0], meta)
		},
	}

	cmd.Flags().StringArrayVarP(&meta, "meta", "m", nil, "Document metadata as key=value (repeatable)")

	return cmd
}

func runUpload(cmd *cobra.Command, a *app, path string, pairs []string) error {
	metadata, err := parseMeta(pairs)
	if err != nil {
		return err
	}

	store := session.NewStore(a.identifiers())
	if err := store.SelectFile(path); err != nil {
		return err
	}
	uploads := session.NewUploadCoordinator(store, a.reader, a.client, a.log, a.reporter)

	status, err := uploads.Run(cmd.Context(), metadata)
	if err != nil {
		return err
	}

	if a.jsonOut {
		return a.printJSON(struct {
			File          string `json:"file"`
			CollectionID  string `json:"collection_id"`
			Chunks        int    `json:"chunks"`
			Entities      int    `json:"entities"`
			Relationships int    `json:"relationships"`
		}{path, store.Identifiers().CollectionID, status.Chunks, status.Entities, status.Relationships})
	}
	a.printf("%s\n", status)
	return nil
}

// CollectionCmd creates the collection command group.
func CollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage collections",
	}
	cmd.AddCommand(collectionCreateCmd())
	return cmd
}

func collectionCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create <collection-id>",
		Short: "Create an empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer a.close()

			ids := a.identifiers()
			ids.CollectionID = args[0]
			if name != "" {
				ids.CollectionName = name
			}
			ids = ids.Normalize()
			if ids.CollectionID == "" {
				return &domain.ValidationError{Field: "collection_id", Message: "collection id must not be blank"}
			}

			if err := a.client.CreateCollection(cmd.Context(), ids); err != nil {
				return fmt.Errorf("failed to create collection: %w", err)
			}
			if a.jsonOut {
				return a.printJSON(map[string]string{
					"workspace_id":    ids.WorkspaceID,
					"collection_id":   ids.CollectionID,
					"collection_name": ids.DisplayName(),
				})
			}
			a.printf("Created collection %s (%s) in workspace %s\n", ids.CollectionID, ids.DisplayName(), ids.WorkspaceID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Collection display name (default: the id)")

	return cmd
}

// HealthCmd creates the health command.
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer a.close()

			h, err := a.client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("backend at %s is unavailable: %w", a.client.BaseURL(), err)
			}
			if a.jsonOut {
				return a.printJSON(h)
			}
			a.printf("%s: %s %s\n", a.client.BaseURL(), h.Status, h.Message)
			return nil
		},
	}
}
