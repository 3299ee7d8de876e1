package check

import (
	"context"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/compiler"
	"github.com/walteh/boolsp/pkg/config"
	"github.com/walteh/boolsp/pkg/debug"
	"github.com/walteh/boolsp/pkg/diagnostic"
	"github.com/walteh/boolsp/pkg/project"
	"github.com/walteh/boolsp/pkg/references"
	"github.com/walteh/boolsp/pkg/workspace"
)

var ErrDiagnostics = errors.Base("errors reported")

type Handler struct {
	Fs      afero.Fs
	Dir     string
	Config  string
	Format  string // text, json
	NoColor bool
	Verbose bool
}

func NewCheckCommand() *cobra.Command {
	me := &Handler{Fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "compile every source under a directory and print its diagnostics",
		Args:  cobra.MaximumNArgs(1),
	}

	cmd.Flags().StringVar(&me.Config, "config", "", "configuration file; discovered under dir when empty")
	cmd.Flags().StringVar(&me.Format, "format", "text", "the format of the diagnostics: text or json")
	cmd.Flags().BoolVar(&me.NoColor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVarP(&me.Verbose, "verbose", "v", false, "log progress to stderr")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.Dir = "."
		if len(args) > 0 {
			me.Dir = args[0]
		}
		ctx := cmd.Context()
		if me.Verbose {
			ctx = debug.WithConsoleLogger(ctx, cmd.ErrOrStderr(), zerolog.DebugLevel, !me.NoColor)
		}
		return me.Run(ctx, cmd.OutOrStdout())
	}

	return cmd
}

func (me *Handler) formatter() (diagnostic.Formatter, error) {
	switch me.Format {
	case "", "text":
		return &diagnostic.TextFormatter{NoColor: me.NoColor}, nil
	case "json", "vscode":
		return diagnostic.NewVSCodeFormatter(), nil
	}
	return nil, errors.Errorf("unknown format %q", me.Format)
}

func (me *Handler) loadConfig(root string) (*config.Config, error) {
	if me.Config != "" {
		return config.LoadConfig(me.Fs, me.Config)
	}
	cfg, _, err := config.Find(me.Fs, root)
	return cfg, err
}

// Run compiles the sources under Dir in one pass and writes their
// diagnostics to out. It returns ErrDiagnostics when any is an error.
func (me *Handler) Run(ctx context.Context, out io.Writer) error {
	formatter, err := me.formatter()
	if err != nil {
		return err
	}

	root, err := filepath.Abs(me.Dir)
	if err != nil {
		return errors.Errorf("resolving %s: %w", me.Dir, err)
	}
	root = filepath.ToSlash(root)

	cfg, err := me.loadConfig(root)
	if err != nil {
		return errors.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Errorf("invalid configuration: %w", err)
	}

	ws := workspace.New(me.Fs, root, workspace.WithSources(cfg.Sources...), workspace.WithExclude(cfg.Exclude...))
	pm := project.NewManager(ws, compiler.NewPipeline(),
		project.WithReferences(references.NewManager(me.Fs, root, cfg.References...)),
		project.WithIndent(ws),
		project.WithPolicy(cfg.Policy()),
		project.WithCompileOptions(cfg.CompileOptions()),
	)

	if err := pm.LoadWorkspace(ctx, ws); err != nil {
		return errors.Errorf("loading workspace: %w", err)
	}

	report, err := pm.CompilePass(ctx)
	if err != nil {
		return errors.Errorf("compiling: %w", err)
	}

	var diags []diagnostic.Diagnostic
	for _, file := range pm.Files() {
		if r, ok := pm.Result(file); ok {
			diags = append(diags, r.Diagnostics...)
		}
	}
	diagnostic.Sort(diags)

	if report != nil {
		zerolog.Ctx(ctx).Debug().Int("files", len(report.Files)).Dur("took", report.Duration).Msg("checked")
	}

	rendered, err := formatter.Format(diags)
	if err != nil {
		return err
	}
	if _, err := out.Write(rendered); err != nil {
		return errors.Errorf("writing diagnostics: %w", err)
	}

	if diagnostic.HasErrors(diags) {
		return errors.WithStack(ErrDiagnostics)
	}
	return nil
}
