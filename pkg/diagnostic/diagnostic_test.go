package diagnostic_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/walteh/boolsp/pkg/diagnostic"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Add(ctx context.Context, mk diagnostic.Marker) {
	m.Called(mk)
}

func (m *MockSink) Remove(ctx context.Context, mk diagnostic.Marker) {
	m.Called(mk)
}

func (m *MockSink) Flush(ctx context.Context, file string, version int32) {
	m.Called(file, version)
}

func TestPolicy_Filter(t *testing.T) {
	diags := []diagnostic.Diagnostic{
		diagnostic.New(diagnostic.CodeSyntax, "a.boo", 1, 1, 1, "bad"),
		diagnostic.New(diagnostic.CodeDuckTyping, "a.boo", 2, 1, 1, "duck"),
		diagnostic.New(diagnostic.CodeUnusedImport, "a.boo", 3, 1, 1, "unused"),
	}

	tests := []struct {
		name   string
		policy *diagnostic.Policy
		want   []string
	}{
		{name: "default", policy: diagnostic.DefaultPolicy(), want: []string{diagnostic.CodeSyntax, diagnostic.CodeUnusedImport}},
		{name: "nothing suppressed", policy: diagnostic.NewPolicy(), want: []string{diagnostic.CodeSyntax, diagnostic.CodeDuckTyping, diagnostic.CodeUnusedImport}},
		{name: "nil policy", policy: nil, want: []string{diagnostic.CodeSyntax, diagnostic.CodeDuckTyping, diagnostic.CodeUnusedImport}},
		{name: "custom", policy: diagnostic.NewPolicy(diagnostic.CodeUnusedImport, diagnostic.CodeDuckTyping), want: []string{diagnostic.CodeSyntax}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, d := range tt.policy.Filter(diags) {
				got = append(got, d.Code)
			}
			assert.Equal(t, tt.want, got)
			assert.Len(t, diags, 3)
		})
	}
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, diagnostic.Error, diagnostic.SeverityOf(diagnostic.CodeLexical))
	assert.Equal(t, diagnostic.Warning, diagnostic.SeverityOf(diagnostic.CodeUnresolvedType))
	assert.Equal(t, diagnostic.Info, diagnostic.SeverityOf("X"))
	assert.True(t, diagnostic.HasErrors([]diagnostic.Diagnostic{diagnostic.New(diagnostic.CodeSyntax, "a", 1, 1, 1, "x")}))
	assert.False(t, diagnostic.HasErrors([]diagnostic.Diagnostic{diagnostic.New(diagnostic.CodeUnusedImport, "a", 1, 1, 1, "x")}))
}

func TestTracker_Update(t *testing.T) {
	ctx := context.Background()
	sink := &MockSink{}
	tracker := diagnostic.NewTracker(sink)

	keep := diagnostic.New(diagnostic.CodeSyntax, "a.boo", 1, 5, 2, "unexpected token")
	gone := diagnostic.New(diagnostic.CodeUnresolvedType, "a.boo", 3, 9, 6, "unknown type 'Widget'")
	added := diagnostic.New(diagnostic.CodeUnusedImport, "a.boo", 2, 8, 9, "unused import")

	sink.On("Add", diagnostic.MarkerOf(keep)).Once()
	sink.On("Add", diagnostic.MarkerOf(gone)).Once()
	sink.On("Flush", "a.boo", int32(1)).Once()
	tracker.Update(ctx, "a.boo", 1, []diagnostic.Diagnostic{keep, gone})
	sink.AssertExpectations(t)

	sink.On("Remove", diagnostic.MarkerOf(gone)).Once()
	sink.On("Add", diagnostic.MarkerOf(added)).Once()
	sink.On("Flush", "a.boo", int32(2)).Once()
	tracker.Update(ctx, "a.boo", 2, []diagnostic.Diagnostic{keep, added})
	sink.AssertExpectations(t)
	assert.Len(t, tracker.Shown("a.boo"), 2)

	sink.On("Remove", diagnostic.MarkerOf(keep)).Once()
	sink.On("Remove", diagnostic.MarkerOf(added)).Once()
	sink.On("Flush", "a.boo", int32(0)).Once()
	tracker.Clear(ctx, "a.boo")
	sink.AssertExpectations(t)
	assert.Empty(t, tracker.Shown("a.boo"))
}

func TestTracker_IgnoresUnchanged(t *testing.T) {
	ctx := context.Background()
	sink := &MockSink{}
	tracker := diagnostic.NewTracker(sink)

	d := diagnostic.New(diagnostic.CodeSyntax, "a.boo", 1, 1, 1, "x")
	sink.On("Add", diagnostic.MarkerOf(d)).Once()
	sink.On("Flush", "a.boo", int32(0)).Twice()

	tracker.Update(ctx, "a.boo", 0, []diagnostic.Diagnostic{d})
	tracker.Update(ctx, "a.boo", 0, []diagnostic.Diagnostic{d})

	sink.AssertExpectations(t)
	sink.AssertNumberOfCalls(t, "Add", 1)
	sink.AssertNotCalled(t, "Remove", mock.Anything)
}

func TestVSCodeFormatter(t *testing.T) {
	out, err := diagnostic.NewVSCodeFormatter().Format([]diagnostic.Diagnostic{
		diagnostic.New(diagnostic.CodeLexical, "a.boo", 2, 1, 1, "mixed indentation, expected the use of spaces"),
	})
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(1), got[0]["severity"])
	assert.Equal(t, "BCE0000", got[0]["code"])
	assert.Equal(t, map[string]any{"line": float64(1), "character": float64(0)}, got[0]["range"].(map[string]any)["start"])
}

func TestTextFormatter(t *testing.T) {
	out, err := (&diagnostic.TextFormatter{NoColor: true}).Format([]diagnostic.Diagnostic{
		diagnostic.New(diagnostic.CodeSyntax, "a.boo", 4, 2, 1, "unexpected token ':'"),
	})
	require.NoError(t, err)
	assert.Equal(t, "a.boo:4:2: error BCE0043: unexpected token ':'\n", string(out))
}
