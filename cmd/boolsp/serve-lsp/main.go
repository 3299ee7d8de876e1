package serve_lsp

import (
	"context"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/config"
	"github.com/walteh/boolsp/pkg/debug"
	"github.com/walteh/boolsp/pkg/lsp"
	"github.com/walteh/boolsp/pkg/lsp/protocol"
)

type Handler struct {
	debug   bool
	config  string
	version string
}

func NewServeLSPCommand(version string) *cobra.Command {
	me := &Handler{version: version}

	cmd := &cobra.Command{
		Use:   "serve-lsp",
		Short: "start the language server on stdin and stdout",
	}

	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&me.config, "config", "", "configuration file; discovered under the workspace root when empty")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	fs := afero.NewOsFs()

	opts := []lsp.Option{lsp.WithVersion(me.version)}

	level := zerolog.InfoLevel
	if me.config != "" {
		cfg, err := config.LoadConfig(fs, me.config)
		if err != nil {
			return errors.Errorf("loading configuration: %w", err)
		}
		opts = append(opts, lsp.WithConfig(cfg))
		level = cfg.Level()
	}
	if me.debug {
		level = zerolog.DebugLevel
	}

	// stdout carries the protocol, so local logs go to stderr
	stderr := debug.NewConsoleLogger(os.Stderr, level, false)
	ctx = stderr.WithContext(ctx)

	server := lsp.NewServer(fs, opts...)

	instance := server.BuildServerInstance(ctx, &jrpc2.ServerOptions{
		RPCLog: &protocol.RPCLogger{Logger: &stderr},
	})

	if err := instance.StartAndWait(os.Stdin, os.Stdout); err != nil {
		return errors.Errorf("error running language server: %w", err)
	}

	return nil
}
