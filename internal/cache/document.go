package cache

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// Document identifies one state of an editor buffer
type Document struct {
	URI     string
	Version int
	Text    string

	hash  uint64
	lines []string
}

// NewDocument creates a document snapshot
func NewDocument(uri string, version int, text string) *Document {
	return &Document{URI: uri, Version: version, Text: text}
}

// Hash returns the content fingerprint of the whole text
func (d *Document) Hash() uint64 {
	if d.hash == 0 {
		d.hash = xxhash.Sum64String(d.Text)
	}
	return d.hash
}

// Lines returns the text split on '\n'
func (d *Document) Lines() []string {
	if d.lines == nil {
		d.lines = strings.Split(d.Text, "\n")
	}
	return d.lines
}

// RangeHash fingerprints the text of the lines in lr. Lines past the end
// of the document hash as absent, so growing a document into a cached
// range invalidates it.
func (d *Document) RangeHash(lr types.LineRange) uint64 {
	lines := d.Lines()
	h := xxhash.New()
	for n := lr.Start; n <= lr.End; n++ {
		if n < 0 || n >= len(lines) {
			_, _ = h.WriteString("\x00")
			continue
		}
		_, _ = h.WriteString(lines[n])
		_, _ = h.WriteString("\n")
	}
	return h.Sum64()
}
