package types

// ConditionType tags a when-clause condition
type ConditionType int

const (
	ConditionPattern ConditionType = iota // plain fact pattern
	ConditionExists
	ConditionNot
	ConditionEval
	ConditionForall
	ConditionCollect
	ConditionAccumulate
	ConditionGeneric // fallback node produced by error recovery
)

func (t ConditionType) String() string {
	switch t {
	case ConditionPattern:
		return "pattern"
	case ConditionExists:
		return "exists"
	case ConditionNot:
		return "not"
	case ConditionEval:
		return "eval"
	case ConditionForall:
		return "forall"
	case ConditionCollect:
		return "collect"
	case ConditionAccumulate:
		return "accumulate"
	case ConditionGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

func (t ConditionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Keyword returns the DRL keyword opening this condition type, or ""
func (t ConditionType) Keyword() string {
	switch t {
	case ConditionExists, ConditionNot, ConditionEval, ConditionForall,
		ConditionCollect, ConditionAccumulate:
		return t.String()
	case ConditionPattern, ConditionGeneric:
		return ""
	default:
		return ""
	}
}

// ConditionTypeFromKeyword maps a multi-line keyword to its type
func ConditionTypeFromKeyword(kw string) (ConditionType, bool) {
	switch kw {
	case "exists":
		return ConditionExists, true
	case "not":
		return ConditionNot, true
	case "eval":
		return ConditionEval, true
	case "forall":
		return ConditionForall, true
	case "collect":
		return ConditionCollect, true
	case "accumulate":
		return ConditionAccumulate, true
	default:
		return ConditionPattern, false
	}
}

// Condition is one entry of a when clause or of a pattern's interior
type Condition struct {
	Type         ConditionType     `json:"conditionType" yaml:"conditionType"`
	Content      string            `json:"content" yaml:"content"`
	Variable     string            `json:"variable,omitempty" yaml:"variable,omitempty"`
	FactType     string            `json:"factType,omitempty" yaml:"factType,omitempty"`
	Constraints  []*Constraint     `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	IsMultiLine  bool              `json:"isMultiLine" yaml:"isMultiLine"`
	SpannedLines []int             `json:"spannedLines,omitempty" yaml:"spannedLines,omitempty"`
	Pattern      *MultiLinePattern `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Range        Range             `json:"range" yaml:"range"`
}

func (c *Condition) NodeRange() Range { return c.Range }

// Constraint is one comma separated entry inside a fact pattern
type Constraint struct {
	Text     string `json:"text" yaml:"text"`
	Binding  string `json:"binding,omitempty" yaml:"binding,omitempty"`
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
	Range    Range  `json:"range" yaml:"range"`
}

// MultiLinePattern is a keyword construct whose parenthesised body
// may span lines and nest
type MultiLinePattern struct {
	Type            ConditionType       `json:"patternType" yaml:"patternType"`
	Keyword         string              `json:"keyword" yaml:"keyword"`
	Content         string              `json:"content" yaml:"content"`
	Nested          []*MultiLinePattern `json:"nestedPatterns,omitempty" yaml:"nestedPatterns,omitempty"`
	Parentheses     []Range             `json:"parentheses,omitempty" yaml:"parentheses,omitempty"`
	IsComplete      bool                `json:"isComplete" yaml:"isComplete"`
	TooComplex      bool                `json:"tooComplex,omitempty" yaml:"tooComplex,omitempty"`
	Depth           int                 `json:"depth" yaml:"depth"`
	InnerConditions []*Condition        `json:"innerConditions,omitempty" yaml:"innerConditions,omitempty"`
	Range           Range               `json:"range" yaml:"range"`
}

// Walk visits p and every nested pattern depth first. Returning false
// from fn skips the children of that pattern.
func (p *MultiLinePattern) Walk(fn func(*MultiLinePattern) bool) {
	stack := []*MultiLinePattern{p}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		for i := len(cur.Nested) - 1; i >= 0; i-- {
			stack = append(stack, cur.Nested[i])
		}
	}
}
