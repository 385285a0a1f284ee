package parser

import (
	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// rescanned errors come from the scanner and bracket tracker, which always
// run over the whole text; everything else is tied to the node that
// produced it and can be carried with it
func rescanned(e *types.ParseError) bool {
	switch e.Code {
	case types.CodeUnterminatedString, types.CodeUnterminatedComment,
		types.CodeUnmatchedOpen, types.CodeUnmatchedClose, types.CodeMismatchedBracket,
		types.CodeFileTruncated, types.CodeInternal:
		return true
	}
	return false
}

// buildIncremental rebuilds only the top-level nodes touched by the edits
// and splices them between the untouched nodes of the previous AST. ok is
// false when the previous AST cannot be reused and a full build is needed.
func (b *Builder) buildIncremental(ctx *ParseContext, opts *Options) ([]types.Node, []*types.ParseError, bool) {
	prev := opts.PreviousAST
	if prev == nil || len(opts.EditedRanges) == 0 {
		return nil, nil, false
	}

	delta := len(ctx.Lines) - (prev.Range.End.Line + 1)
	if delta != 0 && len(opts.EditedRanges) > 1 {
		// line shifts between several edits cannot be attributed reliably
		return nil, nil, false
	}

	edited := opts.EditedRanges[0].Lines()
	for _, r := range opts.EditedRanges[1:] {
		edited = edited.Union(r.Lines())
	}
	if edited.Start < 0 || edited.Start >= len(ctx.Lines) {
		return nil, nil, false
	}
	edited.End = min(edited.End, len(ctx.Lines)-1)
	// last line of the edited region in the previous text
	oldEditEnd := max(edited.Start, edited.End-delta)

	old := prev.Nodes()

	// restart at the last node starting at or before the edit, or earlier
	// while the node before it was cut short by a missing terminator: its
	// extent depends on where the next construct starts
	first, regionStart := 0, 0
	for i, n := range old {
		if n.NodeRange().Start.Line > edited.Start {
			break
		}
		first = i
	}
	if len(old) > 0 && old[first].NodeRange().Start.Line <= edited.Start {
		for first > 0 && unterminated(old[first-1], opts.PreviousErrors) {
			first--
		}
		regionStart = old[first].NodeRange().Start.Line
	}

	oldStarts := make(map[int]int, len(old))
	for i, n := range old[first:] {
		oldStarts[n.NodeRange().Start.Line] = first + i
	}

	syncIdx := -1
	region, stop := b.buildLines(ctx, regionStart, buildCallbacks{
		resync: func(line int) bool {
			if line <= edited.End {
				return false
			}
			oldLine := line - delta
			if oldLine <= oldEditEnd {
				return false
			}
			// the old tail only holds if the text below starts in the same
			// comment state as before the edit
			if ctx.Lines[line].InComment != prev.InComment(oldLine) {
				return false
			}
			if i, ok := oldStarts[oldLine]; ok {
				syncIdx = i
				return true
			}
			return false
		},
	})

	nodes := append([]types.Node{}, old[:first]...)
	nodes = append(nodes, region...)

	var errs []*types.ParseError
	for _, e := range opts.PreviousErrors {
		if !rescanned(e) && e.Range.Start.Line < regionStart {
			errs = append(errs, e)
		}
	}
	errs = append(errs, ctx.Errors()...)

	if syncIdx >= 0 {
		syncOld := stop - delta
		for _, n := range old[syncIdx:] {
			nodes = append(nodes, types.ShiftNode(n, delta))
		}
		for _, e := range opts.PreviousErrors {
			if !rescanned(e) && e.Range.Start.Line >= syncOld {
				errs = append(errs, types.ShiftError(e, delta))
			}
		}
	}

	log.Debugf("incremental parse: lines %d-%d rebuilt, %d nodes reused", regionStart, stop-1, len(nodes)-len(region))
	return nodes, errs, true
}

// unterminated reports whether the previous parse flagged n as missing its
// closing keyword or brace, or as holding a pattern left open
func unterminated(n types.Node, errs []*types.ParseError) bool {
	r := n.NodeRange()
	for _, e := range errs {
		switch e.Code {
		case types.CodeMissingEnd, types.CodeIncompletePattern:
			if r.Contains(e.Range.Start) {
				return true
			}
		}
	}
	return false
}
