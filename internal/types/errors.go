package types

import "fmt"

// Severity of a parse problem as shown in the editor
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText keeps severities readable in JSON/YAML dumps
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrorCategory classifies problems by how parsing reacted to them
type ErrorCategory int

const (
	// CategorySyntax covers brackets, literals and incomplete patterns.
	// Parsing continues past them.
	CategorySyntax ErrorCategory = iota
	// CategoryStructural covers missing when/then/end. The partial node is kept.
	CategoryStructural
	// CategoryCritical is an internal failure. The call returns an empty AST.
	CategoryCritical
)

func (c ErrorCategory) String() string {
	switch c {
	case CategorySyntax:
		return "syntax"
	case CategoryStructural:
		return "structural"
	case CategoryCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Error codes attached to ParseError.Code
const (
	CodeUnterminatedString  = "unterminated-string"
	CodeUnterminatedComment = "unterminated-comment"
	CodeUnmatchedOpen       = "unmatched-open"
	CodeUnmatchedClose      = "unmatched-close"
	CodeMismatchedBracket   = "mismatched-bracket"
	CodeIncompletePattern   = "incomplete-pattern"
	CodePatternTooComplex   = "pattern-too-complex"
	CodeMalformedCondition  = "malformed-condition"
	CodeMissingThen         = "missing-then"
	CodeMissingEnd          = "missing-end"
	CodeMissingName         = "missing-name"
	CodeUnexpectedText      = "unexpected-text"
	CodeFileTruncated       = "file-truncated"
	CodeInternal            = "internal"
)

// ParseError is a problem found while scanning or building the AST
type ParseError struct {
	Message  string        `json:"message" yaml:"message"`
	Range    Range         `json:"range" yaml:"range"`
	Severity Severity      `json:"severity" yaml:"severity"`
	Category ErrorCategory `json:"category" yaml:"category"`
	Code     string        `json:"code,omitempty" yaml:"code,omitempty"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Range.Start.Line+1, e.Range.Start.Character+1, e.Message)
}

// NewSyntaxError creates a recoverable error-severity syntax problem
func NewSyntaxError(code string, r Range, format string, args ...any) *ParseError {
	return &ParseError{
		Message:  fmt.Sprintf(format, args...),
		Range:    r,
		Severity: SeverityError,
		Category: CategorySyntax,
		Code:     code,
	}
}

// NewStructuralError creates a structural problem with the given severity
func NewStructuralError(code string, sev Severity, r Range, format string, args ...any) *ParseError {
	return &ParseError{
		Message:  fmt.Sprintf(format, args...),
		Range:    r,
		Severity: sev,
		Category: CategoryStructural,
		Code:     code,
	}
}

// NewCriticalError wraps an unexpected internal failure
func NewCriticalError(cause any) *ParseError {
	return &ParseError{
		Message:  fmt.Sprintf("internal parser failure: %v", cause),
		Severity: SeverityError,
		Category: CategoryCritical,
		Code:     CodeInternal,
	}
}

// ParseResult is what every parse entry point returns
type ParseResult struct {
	AST    *DroolsFile   `json:"ast" yaml:"ast"`
	Errors []*ParseError `json:"errors" yaml:"errors"`
}

// ErrorsByCategory filters errors down to one category
func (r *ParseResult) ErrorsByCategory(c ErrorCategory) []*ParseError {
	var out []*ParseError
	for _, e := range r.Errors {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// HasCritical reports whether the parse hit an internal failure
func (r *ParseResult) HasCritical() bool {
	return len(r.ErrorsByCategory(CategoryCritical)) > 0
}
