package lsp

import (
	"strings"
	"sync"

	"github.com/jarredhawkins/drl-lsp/internal/cache"
	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// DocumentStore manages open text documents
type DocumentStore struct {
	mu       sync.RWMutex
	docs     map[string]*Document
	encoding PositionEncoding
}

// Document represents an open text document
type Document struct {
	URI     string
	Version int
	Content string

	// edits are the regions changed since version base was taken, in the
	// byte coordinates of Content. full is set when a change replaced the
	// text.
	edits []types.Range
	base  int
	full  bool
}

// NewDocumentStore creates a new document store
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:     make(map[string]*Document),
		encoding: PositionEncodingUTF16,
	}
}

// SetEncoding sets the unit of the character offsets in change ranges
func (ds *DocumentStore) SetEncoding(enc PositionEncoding) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.encoding = enc
}

// Encoding returns the unit of character offsets on the wire
func (ds *DocumentStore) Encoding() PositionEncoding {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.encoding
}

// Open adds or updates a document
func (ds *DocumentStore) Open(uri string, version int, content string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.docs[uri] = &Document{
		URI:     uri,
		Version: version,
		Content: content,
		base:    version,
		full:    true,
	}
}

// Update applies content changes in order. It returns false for a
// document that is not open.
func (ds *DocumentStore) Update(uri string, version int, changes []TextDocumentContentChangeEvent) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	doc, ok := ds.docs[uri]
	if !ok {
		return false
	}
	for _, ch := range changes {
		if ch.Range == nil {
			doc.Content = ch.Text
			doc.edits = nil
			doc.full = true
			continue
		}
		doc.applyRanged(*ch.Range, ch.Text, ds.encoding)
	}
	doc.Version = version
	return true
}

// applyRanged splices text over the wire range and records the changed
// region. Earlier edits below the change move with it; those it touches
// merge into it.
func (d *Document) applyRanged(wire Range, text string, enc PositionEncoding) {
	start := offsetOf(d.Content, wire.Start, enc)
	end := max(offsetOf(d.Content, wire.End, enc), start)
	// offsets are clamped, so derive the real positions back from them
	r := types.Range{Start: positionOf(d.Content, start), End: positionOf(d.Content, end)}

	d.Content = d.Content[:start] + text + d.Content[end:]
	newEnd := positionOf(d.Content, start+len(text))
	delta := (newEnd.Line - r.Start.Line) - (r.End.Line - r.Start.Line)

	edit := types.Range{Start: r.Start, End: newEnd}
	kept := d.edits[:0]
	for _, e := range d.edits {
		switch {
		case e.End.Line < r.Start.Line:
			kept = append(kept, e)
		case e.Start.Line > r.End.Line:
			e.Start.Line += delta
			e.End.Line += delta
			kept = append(kept, e)
		default:
			if e.Start.Less(edit.Start) {
				edit.Start = e.Start
			}
			if end := shiftPast(e.End, r.End.Line, delta); edit.End.Less(end) {
				edit.End = end
			}
		}
	}
	d.edits = append(kept, edit)
}

// shiftPast moves p by delta lines when it lies below line
func shiftPast(p types.Position, line, delta int) types.Position {
	if p.Line > line {
		p.Line += delta
	}
	return p
}

// Close removes a document
func (ds *DocumentStore) Close(uri string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	delete(ds.docs, uri)
}

// Get returns a document's content
func (ds *DocumentStore) Get(uri string) (string, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if doc, ok := ds.docs[uri]; ok {
		return doc.Content, true
	}
	return "", false
}

// TakeEdits returns the current snapshot, the version of the previous
// snapshot and the regions changed since then, then resets them. Edits
// are nil after a full replace.
func (ds *DocumentStore) TakeEdits(uri string) (*cache.Document, int, []types.Range, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	doc, ok := ds.docs[uri]
	if !ok {
		return nil, 0, nil, false
	}
	var edits []types.Range
	if !doc.full {
		edits = doc.edits
	}
	base := doc.base
	doc.edits = nil
	doc.full = false
	doc.base = doc.Version
	return cache.NewDocument(uri, doc.Version, doc.Content), base, edits, true
}

// IsOpen checks if a document is open
func (ds *DocumentStore) IsOpen(uri string) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	_, ok := ds.docs[uri]
	return ok
}

// offsetOf converts a wire position to a byte offset, clamped to the content
func offsetOf(content string, pos Position, enc PositionEncoding) int {
	offset := 0
	for line := 0; line < int(pos.Line); line++ {
		nl := strings.IndexByte(content[offset:], '\n')
		if nl < 0 {
			return len(content)
		}
		offset += nl + 1
	}
	lineEnd := strings.IndexByte(content[offset:], '\n')
	if lineEnd < 0 {
		lineEnd = len(content) - offset
	}
	return offset + byteColumn(content[offset:offset+lineEnd], int(pos.Character), enc)
}

// positionOf converts a byte offset back to a position
func positionOf(content string, offset int) types.Position {
	before := content[:offset]
	line := strings.Count(before, "\n")
	return types.Position{Line: line, Character: offset - (strings.LastIndexByte(before, '\n') + 1)}
}
