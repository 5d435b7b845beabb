package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graphrag/internal/mcpserver"
	"graphrag/internal/session"
	"graphrag/internal/watch"
)

// sessionUploader funnels watched files through the upload coordinator, one at a time.
type sessionUploader struct {
	store   *session.Store
	uploads *session.UploadCoordinator
	out     io.Writer
}

func (u *sessionUploader) UploadFile(ctx context.Context, path string) error {
	if err := u.store.SelectFile(path); err != nil {
		return err
	}
	status, err := u.uploads.Run(ctx, nil)
	fmt.Fprintf(u.out, "%s: %s\n", path, status)
	return err
}

// WatchCmd creates the watch command.
func WatchCmd() *cobra.Command {
	var initial bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload documents from a directory as they appear or change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, a, args[0], initial)
		},
	}

	cmd.Flags().BoolVar(&initial, "initial", false, "Upload files already in the directory before watching")

	return cmd
}

func runWatch(ctx context.Context, a *app, dir string, initial bool) error {
	ids := a.identifiers()
	if ids.CollectionID == "" {
		return fmt.Errorf("a collection is required: use --collection or GRAPHRAG_COLLECTION_ID")
	}

	store := session.NewStore(ids)
	uploader := &sessionUploader{
		store:   store,
		uploads: session.NewUploadCoordinator(store, a.reader, a.client, a.log, a.reporter),
		out:     a.out,
	}
	w, err := watch.New(watch.Config{
		Dir:      dir,
		Debounce: a.cfg.WatchDebounce(),
		Accept:   a.reader.CanRead,
	}, uploader, a.log)
	if err != nil {
		return err
	}

	if initial {
		if err := w.Sync(ctx); err != nil {
			return fmt.Errorf("initial sync failed: %w", err)
		}
	}

	a.log.Info("watching", zap.String("dir", dir), zap.String("collection_id", ids.CollectionID))
	a.printf("Watching %s for documents (collection %s). Press Ctrl+C to stop.\n", dir, ids.CollectionID)
	return w.Run(ctx)
}

// MCPCmd creates the mcp command.
func MCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve answer, search and ingestion as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol, so logs only go to the file.
			a, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer a.close()

			tools := mcpserver.NewTools(a.client, a.client, a.reader, a.identifiers(), a.cfg.SearchLimit, a.log)
			a.log.Info("serving mcp over stdio", zap.String("api_url", a.client.BaseURL()))
			return mcpserver.ServeStdio(tools)
		},
	}
}
