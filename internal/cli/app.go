// Package cli wires configuration, logging and the backend client into cobra commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graphrag/internal/backend"
	"graphrag/internal/config"
	"graphrag/internal/domain"
	"graphrag/internal/logger"
	"graphrag/internal/reader"
	"graphrag/internal/telemetry"
)

// app is what every command needs once flags have been parsed.
type app struct {
	cfg      *config.AppConfig
	log      *zap.Logger
	client   *backend.Client
	reader   *reader.Reader
	reporter *telemetry.Reporter
	flush    func()

	out     io.Writer
	jsonOut bool
}

// setup loads config (flags > env > file > defaults) and builds the shared components.
// console enables the stderr log mirror; the TUI passes false because it owns the terminal.
func setup(cmd *cobra.Command, console bool) (*app, error) {
	flags := cmd.Flags()
	cfgPath, _ := flags.GetString("config")

	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v, _ := flags.GetString("api-url"); v != "" {
		cfg.APIURL = v
	}
	if v, _ := flags.GetString("workspace"); v != "" {
		cfg.WorkspaceID = v
	}
	if v, _ := flags.GetString("collection"); v != "" {
		cfg.CollectionID = v
	}
	if v, _ := flags.GetString("collection-name"); v != "" {
		cfg.CollectionName = v
	}

	logCfg := logger.Config{File: cfg.Log.File, Level: cfg.Log.Level}
	if verbose, _ := flags.GetBool("verbose"); verbose && console {
		logCfg.Console = cmd.ErrOrStderr()
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	reporter, flush := telemetry.Init(telemetry.Config{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     cmd.Root().Version,
	}, log)

	jsonOut, _ := flags.GetBool("output")
	return &app{
		cfg:      cfg,
		log:      log,
		client:   backend.NewClient(backend.Config{BaseURL: cfg.APIURL, Timeout: cfg.RequestTimeout()}, log),
		reader:   reader.New(),
		reporter: reporter,
		flush:    flush,
		out:      cmd.OutOrStdout(),
		jsonOut:  jsonOut,
	}, nil
}

func (a *app) close() {
	a.flush()
	_ = a.log.Sync()
}

func (a *app) identifiers() domain.Identifiers {
	return domain.Identifiers{
		WorkspaceID:    a.cfg.WorkspaceID,
		CollectionID:   a.cfg.CollectionID,
		CollectionName: a.cfg.CollectionName,
	}.Normalize()
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// parseMeta turns repeated key=value flags into upload metadata.
func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", p)
		}
		meta[k] = v
	}
	return meta, nil
}
