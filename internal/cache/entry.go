package cache

import (
	"time"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// Entry is a cached payload plus the bookkeeping used for validation
// and eviction
type Entry[T any] struct {
	Value        T
	Version      int
	Hash         uint64
	LineRanges   []types.LineRange
	CreatedAt    time.Time
	AccessCount  int64
	LastAccessed time.Time
	Size         int64
}

// entryKind separates the independently cached payloads
type entryKind int

const (
	kindParse entryKind = iota
	kindPatterns
	kindBrackets
)

func (k entryKind) String() string {
	switch k {
	case kindParse:
		return "parse"
	case kindPatterns:
		return "patterns"
	case kindBrackets:
		return "brackets"
	default:
		return "unknown"
	}
}

// entryKey addresses one entry. Whole-document entries use a zero range.
type entryKey struct {
	kind  entryKind
	uri   string
	lines types.LineRange
}

// Rough per-object overheads used by the size estimates. They only need
// to be proportional to real memory use for the budget to be meaningful.
const (
	nodeOverhead    = 96
	bracketOverhead = 48
	errorOverhead   = 64
)

// EstimateParseSize approximates the memory held by a parse result
func EstimateParseSize(text string, res *types.ParseResult) int64 {
	size := int64(len(text)) // AST strings are slices of roughly the whole text
	if res == nil {
		return size
	}
	size += int64(len(res.Errors)) * errorOverhead
	if res.AST != nil {
		for _, n := range res.AST.Nodes() {
			size += nodeOverhead
			if r, ok := n.(*types.Rule); ok && r.When != nil {
				size += int64(len(r.When.Conditions)) * nodeOverhead
			}
		}
		for _, p := range res.AST.Patterns() {
			size += EstimatePatternsSize([]*types.MultiLinePattern{p})
		}
	}
	return size
}

// EstimatePatternsSize approximates the memory held by pattern trees
func EstimatePatternsSize(patterns []*types.MultiLinePattern) int64 {
	var size int64
	for _, root := range patterns {
		root.Walk(func(p *types.MultiLinePattern) bool {
			size += nodeOverhead + int64(len(p.Content))
			size += int64(len(p.InnerConditions)) * nodeOverhead
			return true
		})
	}
	return size
}

// EstimateTrackerSize approximates the memory held by a bracket tracker
func EstimateTrackerSize(t *types.ParenthesesTracker) int64 {
	if t == nil {
		return 0
	}
	n := len(t.Opens) + len(t.Closes) + 2*len(t.Pairs) + len(t.UnmatchedOpen) +
		len(t.UnmatchedClose) + 2*len(t.Mismatched)
	return int64(n) * bracketOverhead
}
