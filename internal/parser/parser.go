package parser

import (
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

var log = commonlog.GetLogger("drl.parser")

// DefaultMaxFileSize is the largest input parsed in full
const DefaultMaxFileSize = 1 << 20

// Options tune a Parse call. The zero value parses in full with defaults.
type Options struct {
	EnableIncrementalParsing bool
	// EditedRanges are the changed regions in the coordinates of the new text
	EditedRanges []types.Range
	PreviousAST  *types.DroolsFile
	// PreviousErrors are the errors returned with PreviousAST. Errors of
	// untouched regions are carried over from them.
	PreviousErrors           []*types.ParseError
	MaxFileSize              int
	MaxMultiLinePatternDepth int
	// TooComplex adds criteria for flagging patterns beyond the depth bound
	TooComplex ComplexityFunc
	// Registry replaces the default matchers
	Registry *Registry
}

var defaultRegistry = func() *Registry {
	r := DefaultRegistry()
	r.Matchers() // sort once, before any concurrent use
	return r
}()

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.MaxFileSize <= 0 {
		out.MaxFileSize = DefaultMaxFileSize
	}
	if out.MaxMultiLinePatternDepth <= 0 {
		out.MaxMultiLinePatternDepth = DefaultMaxPatternDepth
	}
	if out.Registry == nil {
		out.Registry = defaultRegistry
	}
	return out
}

// Parse builds the AST of text and collects every problem found. It never
// panics: an internal failure yields an empty AST and one critical error.
func Parse(text string, opts *Options) (result *types.ParseResult) {
	o := opts.withDefaults()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("parser failure: %v", r)
			result = &types.ParseResult{
				AST:    &types.DroolsFile{},
				Errors: []*types.ParseError{types.NewCriticalError(r)},
			}
		}
	}()

	var truncated *types.ParseError
	if len(text) > o.MaxFileSize {
		size := len(text)
		text, truncated = truncate(text, o.MaxFileSize)
		o.EnableIncrementalParsing = false
		log.Warningf("input of %d bytes truncated to %d", size, len(text))
	}

	lines, comments, scanErrs := scanText(text)
	ctx := NewParseContext(lines, NewPatternRecognizer(o.MaxMultiLinePatternDepth, o.TooComplex))
	builder := NewBuilder(o.Registry)

	var (
		nodes     []types.Node
		buildErrs []*types.ParseError
		ok        bool
	)
	if o.EnableIncrementalParsing {
		nodes, buildErrs, ok = builder.buildIncremental(ctx, &o)
	}
	if !ok {
		nodes, _ = builder.buildLines(ctx, 0, buildCallbacks{})
		buildErrs = ctx.Errors()
	}

	file := assemble(nodes, lines, comments)
	incomplete := incompleteRanges(file)
	skip := func(pos types.Position) bool {
		for _, r := range incomplete {
			if r.Contains(pos) {
				return true
			}
		}
		return false
	}

	errs := append([]*types.ParseError{}, scanErrs...)
	errs = append(errs, BracketDiagnostics(TrackBrackets(lines), skip)...)
	errs = append(errs, buildErrs...)
	if truncated != nil {
		errs = append(errs, truncated)
	}
	sortErrors(errs)

	return &types.ParseResult{AST: file, Errors: errs}
}

// truncate cuts text at the last line break within limit
func truncate(text string, limit int) (string, *types.ParseError) {
	cut := strings.LastIndexByte(text[:limit], '\n')
	if cut < 0 {
		cut = 0
	}
	kept := text[:cut]
	line := strings.Count(kept, "\n")
	col := len(kept) - strings.LastIndexByte(kept, '\n') - 1
	err := &types.ParseError{
		Message:  "file is too large, only the beginning was analysed",
		Range:    types.NewRange(line, col, line, col),
		Severity: types.SeverityWarning,
		Category: types.CategoryStructural,
		Code:     types.CodeFileTruncated,
	}
	return kept, err
}

// incompleteRanges lists the extents of every unclosed pattern
func incompleteRanges(file *types.DroolsFile) []types.Range {
	var out []types.Range
	for _, root := range file.Patterns() {
		root.Walk(func(p *types.MultiLinePattern) bool {
			if !p.IsComplete {
				out = append(out, p.Range)
			}
			return true
		})
	}
	return out
}

// sortErrors orders errors by position so results are deterministic
func sortErrors(errs []*types.ParseError) {
	sort.SliceStable(errs, func(i, j int) bool {
		a, b := errs[i], errs[j]
		if a.Range.Start != b.Range.Start {
			return a.Range.Start.Less(b.Range.Start)
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
}
