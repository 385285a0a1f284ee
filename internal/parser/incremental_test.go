package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

const incrementalBase = `package org.acme;

rule "A"
when
    Person(age > 18)
then
    System.out.println("a");
end

rule "B"
when
    Car()
end
`

// reparse runs an incremental parse of next on top of a full parse of prev
// and checks it against a full parse of next
func reparse(t *testing.T, prev, next string, edits ...types.Range) (old, inc *types.ParseResult) {
	t.Helper()
	old = Parse(prev, nil)
	require.False(t, old.HasCritical())

	inc = Parse(next, &Options{
		EnableIncrementalParsing: true,
		EditedRanges:             edits,
		PreviousAST:              old.AST,
		PreviousErrors:           old.Errors,
	})
	full := Parse(next, nil)

	assert.Equal(t, full.AST, inc.AST)
	assert.Equal(t, full.Errors, inc.Errors)
	return old, inc
}

func TestIncremental_SingleLineEdit(t *testing.T) {
	next := strings.Replace(incrementalBase, "age > 18", "age > 21", 1)
	old, inc := reparse(t, incrementalBase, next, types.NewRange(4, 0, 4, 20))

	// untouched declarations are shared with the previous tree
	assert.Same(t, old.AST.Package, inc.AST.Package)
	assert.Same(t, old.AST.Rules[1], inc.AST.Rules[1])
	assert.NotSame(t, old.AST.Rules[0], inc.AST.Rules[0])

	// rule B still misses its then
	assert.Equal(t, []string{types.CodeMissingThen}, errorCodes(inc.Errors))
}

func TestIncremental_LineInserted(t *testing.T) {
	next := strings.Replace(incrementalBase, "    Person(age > 18)\n", "    Person(age > 18)\n    Car()\n", 1)
	old, inc := reparse(t, incrementalBase, next, types.NewRange(5, 0, 6, 0))

	require.Len(t, inc.AST.Rules, 2)
	assert.Len(t, inc.AST.Rules[0].When.Conditions, 2)
	assert.Equal(t, 10, inc.AST.Rules[1].Range.Start.Line)
	// shifted copies, the previous tree is left alone
	assert.NotSame(t, old.AST.Rules[1], inc.AST.Rules[1])
	assert.Equal(t, 9, old.AST.Rules[1].Range.Start.Line)
	require.Len(t, inc.Errors, 1)
	assert.Equal(t, 10, inc.Errors[0].Range.Start.Line)
}

func TestIncremental_LinesRemoved(t *testing.T) {
	next := strings.Replace(incrementalBase, "then\n    System.out.println(\"a\");\n", "then\n", 1)
	reparse(t, incrementalBase, next, types.NewRange(5, 4, 5, 4))
}

func TestIncremental_TerminatingRule(t *testing.T) {
	prev := "rule \"A\"\nwhen\n    Person()\nthen\n    foo();\nrule \"B\"\nwhen\nthen\nend\n"
	next := "rule \"A\"\nwhen\n    Person()\nthen\n    foo();\nend\nrule \"B\"\nwhen\nthen\nend\n"

	old, inc := reparse(t, prev, next, types.NewRange(5, 0, 6, 0))
	assert.Equal(t, []string{types.CodeMissingEnd}, errorCodes(old.Errors))
	assert.Empty(t, inc.Errors)
	assert.Equal(t, types.NewRange(0, 0, 5, 3), inc.AST.Rules[0].Range)
}

func TestIncremental_EditBreaksBrackets(t *testing.T) {
	next := strings.Replace(incrementalBase, "    Car()", "    Car(", 1)
	_, inc := reparse(t, incrementalBase, next, types.NewRange(11, 0, 11, 8))
	assert.Contains(t, errorCodes(inc.Errors), types.CodeMalformedCondition)
}

func TestIncremental_EditBeforeFirstNode(t *testing.T) {
	next := "// header\n" + incrementalBase
	reparse(t, incrementalBase, next, types.NewRange(0, 0, 1, 0))
}

func TestIncremental_CommentStateChanges(t *testing.T) {
	commented := strings.Replace(incrementalBase, "end\n\nrule \"B\"", "end\n/*\nrule \"B\"", 1)

	t.Run("opening a block comment hides what follows", func(t *testing.T) {
		_, inc := reparse(t, incrementalBase, commented, types.NewRange(8, 0, 8, 2))
		require.Len(t, inc.AST.Rules, 1)
		assert.Equal(t, "A", inc.AST.Rules[0].Name)
		assert.Equal(t, []string{types.CodeUnterminatedComment}, errorCodes(inc.Errors))
	})

	t.Run("removing it brings the rule back", func(t *testing.T) {
		_, inc := reparse(t, commented, incrementalBase, types.NewRange(8, 0, 8, 0))
		require.Len(t, inc.AST.Rules, 2)
		assert.Equal(t, []string{types.CodeMissingThen}, errorCodes(inc.Errors))
	})
}

func TestIncremental_OpenFragmentIsExtended(t *testing.T) {
	prev := "exists(\n  Person()\nrule \"S\"\nwhen\nthen\nend\n"
	next := "exists(\n  Person()\n  Car()\nwhen\nthen\nend\n"

	old, inc := reparse(t, prev, next, types.NewRange(2, 0, 2, 7))
	require.Len(t, old.AST.Fragments, 1)
	assert.Equal(t, 1, old.AST.Fragments[0].Range.End.Line)

	require.Len(t, inc.AST.Fragments, 1)
	assert.Empty(t, inc.AST.Rules)
	assert.Equal(t, 2, inc.AST.Fragments[0].Range.End.Line)
}

func TestIncremental_Fallbacks(t *testing.T) {
	old := Parse(incrementalBase, nil)
	lines, _ := ScanLines(incrementalBase + "\n\n")
	b := NewBuilder(defaultRegistry)

	tests := []struct {
		name  string
		edits []types.Range
		prev  *types.DroolsFile
	}{
		{name: "no previous tree", edits: []types.Range{types.NewRange(1, 0, 1, 0)}},
		{name: "no edits", prev: old.AST},
		{
			name:  "several edits with a line delta",
			edits: []types.Range{types.NewRange(1, 0, 1, 0), types.NewRange(8, 0, 8, 0)},
			prev:  old.AST,
		},
		{name: "edit past the end", edits: []types.Range{types.NewRange(40, 0, 40, 0)}, prev: old.AST},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewParseContext(lines, NewPatternRecognizer(0, nil))
			_, _, ok := b.buildIncremental(ctx, &Options{
				EnableIncrementalParsing: true,
				EditedRanges:             tt.edits,
				PreviousAST:              tt.prev,
				PreviousErrors:           old.Errors,
			})
			assert.False(t, ok)
		})
	}
}
