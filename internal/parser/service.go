package parser

import (
	"strings"

	"github.com/jarredhawkins/drl-lsp/internal/cache"
	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// Parser runs parses through a cache. A nil cache parses every time.
type Parser struct {
	cache *cache.Manager
	opts  Options
}

// New creates a parser service
func New(c *cache.Manager, opts Options) *Parser {
	return &Parser{cache: c, opts: opts}
}

// Cache returns the cache the parser stores results in
func (p *Parser) Cache() *cache.Manager {
	return p.cache
}

// ParseDocument parses doc, reusing a cached result for the same version
// and content. edits are the regions changed since version base was
// parsed. With incremental parsing enabled they are applied on top of the
// cached parse of base; any other cached version is never used as a base.
func (p *Parser) ParseDocument(doc *cache.Document, base int, edits []types.Range) *types.ParseResult {
	cacheable := p.cache != nil && p.cache.Cacheable(doc)
	var prev *types.ParseResult
	if cacheable {
		// taken first: a lookup for a newer version drops the old entry
		last, version, ok := p.cache.LastParse(doc.URI)
		if ok && version == base {
			prev = last
		}
		if res, ok := p.cache.GetParse(doc); ok {
			log.Debugf("parse cache hit: %s@%d", doc.URI, doc.Version)
			return res
		}
	}

	opts := p.opts
	if prev != nil && opts.EnableIncrementalParsing && len(edits) > 0 && !prev.HasCritical() {
		opts.PreviousAST = prev.AST
		opts.PreviousErrors = prev.Errors
		opts.EditedRanges = edits
	} else {
		opts.EnableIncrementalParsing = false
	}

	res := Parse(doc.Text, &opts)

	if p.cache != nil {
		if len(edits) > 0 {
			var edited, patterns []types.LineRange
			for _, e := range edits {
				edited = append(edited, e.Lines())
			}
			for _, pat := range res.AST.Patterns() {
				patterns = append(patterns, pat.Range.Lines())
			}
			p.cache.Invalidate(doc.URI, cache.AffectedLines(edited, patterns))
		}
		if cacheable && !res.HasCritical() {
			p.cache.PutParse(doc, res)
		}
	}
	return res
}

// Brackets returns the bracket tracker of the lines in lr, scanned on
// their own. The result only depends on the text of those lines.
func (p *Parser) Brackets(doc *cache.Document, lr types.LineRange) *types.ParenthesesTracker {
	if p.cache != nil {
		if t, ok := p.cache.GetBrackets(doc, lr); ok {
			return t
		}
	}
	lines := rangeLines(doc, lr)
	for i := range lines {
		lines[i].Number += lr.Start
	}
	t := TrackBrackets(lines)
	if p.cache != nil {
		p.cache.PutBrackets(doc, lr, t)
	}
	return t
}

// Patterns returns the top-level multi-line patterns starting in lr, with
// the lines in lr scanned on their own. A pattern running past the range
// is reported incomplete.
func (p *Parser) Patterns(doc *cache.Document, lr types.LineRange) []*types.MultiLinePattern {
	if p.cache != nil {
		if pats, ok := p.cache.GetPatterns(doc, lr); ok {
			return pats
		}
	}
	opts := p.opts.withDefaults()
	lines := rangeLines(doc, lr)
	rec := NewPatternRecognizer(opts.MaxMultiLinePatternDepth, opts.TooComplex)
	rec.StopAtBoundary = false

	found := FindPatterns(lines, types.LineRange{Start: 0, End: len(lines) - 1}, rec)
	pats := make([]*types.MultiLinePattern, len(found))
	for i, pat := range found {
		pats[i] = types.ShiftPattern(pat, lr.Start)
	}
	if p.cache != nil {
		p.cache.PutPatterns(doc, lr, pats)
	}
	return pats
}

// Close drops everything cached for uri
func (p *Parser) Close(uri string) {
	if p.cache != nil {
		p.cache.ClearDocument(uri)
	}
}

// rangeLines scans the document lines in lr as a standalone text. Line
// numbers are relative to lr.Start.
func rangeLines(doc *cache.Document, lr types.LineRange) []Line {
	all := doc.Lines()
	start := min(max(lr.Start, 0), len(all))
	end := min(max(lr.End+1, start), len(all))
	lines, _ := ScanLines(strings.Join(all[start:end], "\n"))
	return lines
}
