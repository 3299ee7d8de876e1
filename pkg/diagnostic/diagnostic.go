package diagnostic

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"
	"gitlab.com/tozd/go/errors"
)

// Well known diagnostic codes
const (
	CodeLexical          = "BCE0000"
	CodeSyntax           = "BCE0043"
	CodeDuplicateType    = "BCE0132"
	CodeUnresolvedType   = "BCW0011"
	CodeUnusedImport     = "BCW0014"
	CodeUnknownNamespace = "BCW0021"
	CodeDuckTyping       = "BCW0028"
)

// DefaultSuppressed are codes dropped unless a configuration says otherwise.
var DefaultSuppressed = []string{CodeDuckTyping}

// Diagnostic represents a single compiler message
type Diagnostic struct {
	Code     string
	Severity DiagnosticSeverity
	File     string
	Line     int
	Column   int
	Length   int
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s %s: %s", d.File, d.Line, d.Column, d.Severity, d.Code, d.Message)
}

// DiagnosticSeverity represents the severity level of a diagnostic
type DiagnosticSeverity string

const (
	Error   DiagnosticSeverity = "error"
	Warning DiagnosticSeverity = "warning"
	Info    DiagnosticSeverity = "info"
	Hint    DiagnosticSeverity = "hint"
)

// SeverityOf derives the severity from the code prefix: BCE is an error,
// BCW a warning, anything else informational.
func SeverityOf(code string) DiagnosticSeverity {
	switch {
	case strings.HasPrefix(code, "BCE"):
		return Error
	case strings.HasPrefix(code, "BCW"):
		return Warning
	default:
		return Info
	}
}

// New builds a diagnostic with the severity implied by code.
func New(code, file string, line, column, length int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: SeverityOf(code),
		File:     file,
		Line:     line,
		Column:   column,
		Length:   length,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Sort orders diagnostics by file and position.
func Sort(diags []Diagnostic) {
	slices.SortStableFunc(diags, func(a, b Diagnostic) int {
		return cmp.Or(
			strings.Compare(a.File, b.File),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
		)
	})
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	return slices.ContainsFunc(diags, func(d Diagnostic) bool { return d.Severity == Error })
}

// Policy drops diagnostics whose code is suppressed.
type Policy struct {
	suppressed map[string]bool
}

func NewPolicy(suppressed ...string) *Policy {
	p := &Policy{suppressed: make(map[string]bool, len(suppressed))}
	for _, code := range suppressed {
		p.suppressed[code] = true
	}
	return p
}

// DefaultPolicy suppresses DefaultSuppressed.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultSuppressed...)
}

func (p *Policy) Suppressed(code string) bool {
	return p != nil && p.suppressed[code]
}

// Filter returns the diagnostics that are not suppressed. The input is not
// modified.
func (p *Policy) Filter(diags []Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if !p.Suppressed(d.Code) {
			out = append(out, d)
		}
	}
	return out
}

// Formatter formats diagnostics into different output formats
type Formatter interface {
	// Format formats diagnostics into a specific output format
	Format(diagnostics []Diagnostic) ([]byte, error)
}

// VSCodeFormatter formats diagnostics into VSCode-compatible format
type VSCodeFormatter struct{}

func NewVSCodeFormatter() *VSCodeFormatter {
	return &VSCodeFormatter{}
}

type vscodePosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type vscodeDiagnostic struct {
	File     string `json:"file"`
	Code     string `json:"code"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
	Range    struct {
		Start vscodePosition `json:"start"`
		End   vscodePosition `json:"end"`
	} `json:"range"`
}

// LSPSeverity maps a severity onto the protocol's numeric scale.
func LSPSeverity(s DiagnosticSeverity) int {
	switch s {
	case Error:
		return 1
	case Warning:
		return 2
	case Info:
		return 3
	default:
		return 4
	}
}

// Format implements Formatter
func (f *VSCodeFormatter) Format(diagnostics []Diagnostic) ([]byte, error) {
	result := make([]vscodeDiagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		vd := vscodeDiagnostic{
			File:     d.File,
			Code:     d.Code,
			Severity: LSPSeverity(d.Severity),
			Message:  d.Message,
		}
		// VSCode is 0-based
		vd.Range.Start = vscodePosition{Line: d.Line - 1, Character: d.Column - 1}
		vd.Range.End = vscodePosition{Line: d.Line - 1, Character: d.Column - 1 + max(d.Length, 1)}
		result = append(result, vd)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, errors.Errorf("marshalling diagnostics: %w", err)
	}
	return out, nil
}

// TextFormatter renders one diagnostic per line, colored by severity.
type TextFormatter struct {
	NoColor bool
}

func (f *TextFormatter) Format(diagnostics []Diagnostic) ([]byte, error) {
	var sb strings.Builder
	for _, d := range diagnostics {
		sev := string(d.Severity)
		if !f.NoColor {
			switch d.Severity {
			case Error:
				sev = color.New(color.FgRed, color.Bold).Sprint(sev)
			case Warning:
				sev = color.New(color.FgYellow).Sprint(sev)
			default:
				sev = color.New(color.Faint).Sprint(sev)
			}
		}
		fmt.Fprintf(&sb, "%s:%d:%d: %s %s: %s\n", d.File, d.Line, d.Column, sev, d.Code, d.Message)
	}
	return []byte(sb.String()), nil
}
