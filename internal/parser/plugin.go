package parser

import (
	"sort"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// ParseContext provides context for matching
type ParseContext struct {
	Lines      []Line             // whole document, neutralized
	LineNum    int                // current line (0-indexed)
	Recognizer *PatternRecognizer // shared multi-line pattern recognizer

	errors []*types.ParseError
}

// NewParseContext creates a context over scanned lines
func NewParseContext(lines []Line, recognizer *PatternRecognizer) *ParseContext {
	return &ParseContext{Lines: lines, Recognizer: recognizer}
}

// Line returns the current line
func (ctx *ParseContext) Line() Line {
	return ctx.Lines[ctx.LineNum]
}

// Report records a problem found by a matcher
func (ctx *ParseContext) Report(err *types.ParseError) {
	ctx.errors = append(ctx.errors, err)
}

// Errors returns everything reported so far
func (ctx *ParseContext) Errors() []*types.ParseError {
	return ctx.errors
}

// MatchResult contains the construct parsed at the current line
type MatchResult struct {
	Node types.Node
	// NextLine is where scanning resumes. Values not past the current
	// line are treated as the following line.
	NextLine int
}

// Matcher recognizes one kind of top-level DRL construct
type Matcher interface {
	// Name returns plugin identifier
	Name() string

	// Match tests if a construct starts at line and parses it
	// Returns nil if no match
	Match(line Line, ctx *ParseContext) *MatchResult

	// Priority for ordering (higher = earlier)
	Priority() int
}

// Registry holds all registered matchers
type Registry struct {
	matchers []Matcher
	sorted   bool
}

// NewRegistry creates a new empty registry
func NewRegistry() *Registry {
	return &Registry{
		matchers: make([]Matcher, 0),
	}
}

// Register adds a matcher to the registry
func (r *Registry) Register(m Matcher) {
	r.matchers = append(r.matchers, m)
	r.sorted = false
}

// Matchers returns all registered matchers in priority order
func (r *Registry) Matchers() []Matcher {
	if !r.sorted {
		sort.SliceStable(r.matchers, func(i, j int) bool {
			return r.matchers[i].Priority() > r.matchers[j].Priority()
		})
		r.sorted = true
	}
	return r.matchers
}

// RegisterDefaults adds the DRL matchers to the registry
func RegisterDefaults(r *Registry) {
	r.Register(&PackageMatcher{})
	r.Register(&ImportMatcher{})
	r.Register(&GlobalMatcher{})
	r.Register(&FunctionMatcher{})
	r.Register(&RuleMatcher{})
	r.Register(&QueryMatcher{})
	r.Register(&DeclareMatcher{})
	r.Register(&AttributeMatcher{})
	r.Register(&FragmentMatcher{})
}

// DefaultRegistry returns a registry with the DRL matchers
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}
