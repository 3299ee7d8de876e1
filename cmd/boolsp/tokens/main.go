package tokens

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/boolsp/pkg/layout"
	"github.com/walteh/boolsp/pkg/workspace"
)

type Handler struct {
	Fs   afero.Fs
	File string
}

func NewTokensCommand() *cobra.Command {
	me := &Handler{Fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:    "tokens [file]",
		Short:  "print the token stream the parser sees for a file",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.File = args[0]
		return me.Run(cmd.Context(), cmd.OutOrStdout())
	}

	return cmd
}

// Run prints one token per line as line:column followed by the token.
// The indentation the file's .editorconfig expects is enforced.
func (me *Handler) Run(ctx context.Context, out io.Writer) error {
	file, err := filepath.Abs(me.File)
	if err != nil {
		return errors.Errorf("resolving %s: %w", me.File, err)
	}
	file = filepath.ToSlash(file)

	text, err := afero.ReadFile(me.Fs, file)
	if err != nil {
		return errors.Errorf("reading %s: %w", file, err)
	}

	ws := workspace.New(me.Fs, "/")
	indent, _ := ws.IndentStyle(ctx, file)

	toks, err := layout.Tokenize(file, string(text), layout.WithExpectedIndent(indent))
	for _, tok := range toks {
		fmt.Fprintf(out, "%d:%d\t%s\n", tok.Line, tok.Column, tok.String())
	}
	if err != nil {
		return errors.Errorf("tokenizing %s: %w", file, err)
	}
	return nil
}
