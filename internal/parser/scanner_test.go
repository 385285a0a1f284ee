package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

func TestScanLines(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantCode  []string
		wantCodes []string // error codes
	}{
		{
			name:     "plain code is untouched",
			text:     "rule \"R\"\nwhen",
			wantCode: []string{`rule " "`, "when"},
		},
		{
			name:     "string interior is blanked",
			text:     `Person(name == "a(b")`,
			wantCode: []string{`Person(name == "   ")`},
		},
		{
			name:     "escaped quote does not end the literal",
			text:     `x == "a\"(" )`,
			wantCode: []string{`x == "    " )`},
		},
		{
			name:     "char literal",
			text:     `c == '(' `,
			wantCode: []string{`c == ' ' `},
		},
		{
			name:     "line comment",
			text:     "a() // (",
			wantCode: []string{"a()     "},
		},
		{
			name:     "block comment across lines",
			text:     "a /* (\n ) */ b",
			wantCode: []string{"a     ", "      b"},
		},
		{
			name:      "unterminated string resets at next line",
			text:      "x == \"abc(\ny()",
			wantCode:  []string{`x == "    `, "y()"},
			wantCodes: []string{types.CodeUnterminatedString},
		},
		{
			name:      "unterminated block comment",
			text:      "a /* never\nclosed (",
			wantCode:  []string{"a         ", "        "},
			wantCodes: []string{types.CodeUnterminatedComment},
		},
		{
			name:     "carriage returns are dropped",
			text:     "a\r\nb",
			wantCode: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, errs := ScanLines(tt.text)
			require.Len(t, lines, len(tt.wantCode))
			for i, l := range lines {
				assert.Equal(t, tt.wantCode[i], l.Code, "line %d", i)
				assert.Equal(t, len(l.Text), len(l.Code), "line %d keeps its length", i)
				assert.Equal(t, i, l.Number)
			}
			var codes []string
			for _, e := range errs {
				codes = append(codes, e.Code)
				assert.Equal(t, types.CategorySyntax, e.Category)
			}
			assert.Equal(t, tt.wantCodes, codes)
		})
	}
}

func TestScanText_BlockComments(t *testing.T) {
	lines, comments, errs := scanText("a /* x\ny\nz */ b /* c */\n/* open\n")
	require.Len(t, lines, 5)

	var inComment []bool
	for _, l := range lines {
		inComment = append(inComment, l.InComment)
	}
	assert.Equal(t, []bool{false, true, true, false, true}, inComment)

	// single line comments are left out
	assert.Equal(t, []types.Range{
		types.NewRange(0, 2, 2, 4),
		types.NewRange(3, 0, 4, 0),
	}, comments)
	require.Len(t, errs, 1)
	assert.Equal(t, types.CodeUnterminatedComment, errs[0].Code)
}

func TestLineHelpers(t *testing.T) {
	lines, _ := ScanLines("  \tsalience 10\n  // only a comment\nrule.x()")

	assert.Equal(t, 3, lines[0].Indent())
	assert.Equal(t, "salience", lines[0].FirstWord())
	assert.True(t, lines[1].IsBlank())
	assert.True(t, lines[1].Opaque(4))
	assert.False(t, lines[0].Opaque(4))

	// a method call on a variable named rule is not a rule header
	assert.Equal(t, "rule", lines[2].FirstWord())
	assert.False(t, keywordAt(lines[2], "rule"))
	assert.Equal(t, "", boundaryKeyword(lines[2]))
}
