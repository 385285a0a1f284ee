package types

import "strings"

// SymbolKind categorizes DRL declarations for outline and navigation
type SymbolKind int

const (
	KindPackage SymbolKind = iota
	KindImport
	KindGlobal
	KindFunction
	KindRule
	KindQuery
	KindDeclaration
	KindField
	KindBinding // $var bound inside a rule or query
)

func (k SymbolKind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindImport:
		return "import"
	case KindGlobal:
		return "global"
	case KindFunction:
		return "function"
	case KindRule:
		return "rule"
	case KindQuery:
		return "query"
	case KindDeclaration:
		return "declare"
	case KindField:
		return "field"
	case KindBinding:
		return "binding"
	default:
		return "unknown"
	}
}

// Symbol represents a DRL definition
type Symbol struct {
	Name     string // e.g. "Adult check", "$p"
	Kind     SymbolKind
	Detail   string // fact type of a binding, field type, ...
	Range    Range
	Scope    []string // enclosing package / rule names
	FullName string   // computed: "org.acme/Adult check"
	Children []*Symbol
}

// ComputeFullName generates the qualified name for this symbol
func (s *Symbol) ComputeFullName() string {
	switch s.Kind {
	case KindField, KindBinding:
		// members hang off their owner with '#'
		if len(s.Scope) > 0 {
			return strings.Join(s.Scope, "/") + "#" + s.Name
		}
		return "#" + s.Name
	default:
		parts := append(append([]string{}, s.Scope...), s.Name)
		return strings.Join(parts, "/")
	}
}

// MatchesName checks if this symbol matches the given name
// Supports both short names and fully qualified names
func (s *Symbol) MatchesName(name string) bool {
	return s.Name == name || s.FullName == name
}
