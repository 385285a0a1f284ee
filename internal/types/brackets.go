package types

// BracketKind is one of the three tracked bracket families
type BracketKind int

const (
	BracketParen  BracketKind = iota // ()
	BracketBrace                     // {}
	BracketSquare                    // []
)

func (k BracketKind) String() string {
	switch k {
	case BracketParen:
		return "paren"
	case BracketBrace:
		return "brace"
	case BracketSquare:
		return "square"
	default:
		return "unknown"
	}
}

func (k BracketKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// BracketKindOf classifies a bracket byte. ok is false for anything else.
func BracketKindOf(ch byte) (kind BracketKind, open bool, ok bool) {
	switch ch {
	case '(':
		return BracketParen, true, true
	case ')':
		return BracketParen, false, true
	case '{':
		return BracketBrace, true, true
	case '}':
		return BracketBrace, false, true
	case '[':
		return BracketSquare, true, true
	case ']':
		return BracketSquare, false, true
	default:
		return 0, false, false
	}
}

// Bracket is a single bracket character at a position
type Bracket struct {
	Kind     BracketKind `json:"kind" yaml:"kind"`
	Char     string      `json:"char" yaml:"char"`
	Position Position    `json:"position" yaml:"position"`
}

// BracketPair links an open bracket with the close that consumed it
type BracketPair struct {
	Open  Bracket `json:"open" yaml:"open"`
	Close Bracket `json:"close" yaml:"close"`
}

// Range spans from the open bracket to just after the close
func (p BracketPair) Range() Range {
	end := p.Close.Position
	end.Character++
	return Range{Start: p.Open.Position, End: end}
}

// ParenthesesTracker is the bracket bookkeeping for a document or slice
// of it. len(Pairs)+len(UnmatchedOpen) == len(Opens) and
// len(Pairs)+len(UnmatchedClose) == len(Closes) always hold.
type ParenthesesTracker struct {
	Opens          []Bracket     `json:"opens,omitempty" yaml:"opens,omitempty"`
	Closes         []Bracket     `json:"closes,omitempty" yaml:"closes,omitempty"`
	Pairs          []BracketPair `json:"pairs,omitempty" yaml:"pairs,omitempty"`
	UnmatchedOpen  []Bracket     `json:"unmatchedOpen,omitempty" yaml:"unmatchedOpen,omitempty"`
	UnmatchedClose []Bracket     `json:"unmatchedClose,omitempty" yaml:"unmatchedClose,omitempty"`
	// Mismatched records closes that arrived while a bracket of another
	// kind was innermost. Open is that innermost bracket.
	Mismatched []BracketPair `json:"mismatched,omitempty" yaml:"mismatched,omitempty"`
}

// PairsInLines returns the pairs with at least one bracket in lr
func (t *ParenthesesTracker) PairsInLines(lr LineRange) []BracketPair {
	var out []BracketPair
	for _, p := range t.Pairs {
		if lr.Contains(p.Open.Position.Line) || lr.Contains(p.Close.Position.Line) {
			out = append(out, p)
		}
	}
	return out
}

// MatchAt finds the pair whose open or close bracket sits at pos
func (t *ParenthesesTracker) MatchAt(pos Position) (BracketPair, bool) {
	for _, p := range t.Pairs {
		if p.Open.Position == pos || p.Close.Position == pos {
			return p, true
		}
	}
	return BracketPair{}, false
}

// Balanced reports whether every bracket was matched with its own kind
func (t *ParenthesesTracker) Balanced() bool {
	return len(t.UnmatchedOpen) == 0 && len(t.UnmatchedClose) == 0 && len(t.Mismatched) == 0
}
