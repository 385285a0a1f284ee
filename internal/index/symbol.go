package index

import (
	"strings"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// collect turns the declarations of a file into outline symbols. Rule
// and query symbols carry their bound variables as children.
func collect(file *types.DroolsFile) []*types.Symbol {
	var scope []string
	if file.Package != nil {
		scope = []string{file.Package.Name}
	}

	var out []*types.Symbol
	add := func(s *types.Symbol) *types.Symbol {
		s.Scope = scope
		s.FullName = s.ComputeFullName()
		out = append(out, s)
		return s
	}

	for _, n := range file.Nodes() {
		switch v := n.(type) {
		case *types.Package:
			out = append(out, &types.Symbol{Name: v.Name, Kind: types.KindPackage, Range: v.Range, FullName: v.Name})
		case *types.Import:
			add(&types.Symbol{Name: v.Target, Kind: types.KindImport, Range: v.Range})
		case *types.Global:
			add(&types.Symbol{Name: v.Name, Kind: types.KindGlobal, Detail: v.Type, Range: v.Range})
		case *types.Function:
			add(&types.Symbol{Name: v.Name, Kind: types.KindFunction, Detail: v.ReturnType, Range: v.Range})
		case *types.Rule:
			s := add(&types.Symbol{Name: v.Name, Kind: types.KindRule, Detail: v.Extends, Range: v.Range})
			if v.When != nil {
				s.Children = bindings(s, v.When.Conditions)
			}
		case *types.Query:
			s := add(&types.Symbol{Name: v.Name, Kind: types.KindQuery, Range: v.Range})
			s.Children = bindings(s, v.Conditions)
		case *types.Declaration:
			s := add(&types.Symbol{Name: v.Name, Kind: types.KindDeclaration, Detail: v.SuperType, Range: v.Range})
			for _, f := range v.Fields {
				s.Children = append(s.Children, member(s, &types.Symbol{
					Name: f.Name, Kind: types.KindField, Detail: f.Type, Range: f.Range,
				}))
			}
		}
	}
	return out
}

// bindings lists the $variables bound by conditions, including those
// inside multi-line patterns, in document order
func bindings(owner *types.Symbol, conds []*types.Condition) []*types.Symbol {
	var out []*types.Symbol
	var visit func(conds []*types.Condition)
	visit = func(conds []*types.Condition) {
		for _, c := range conds {
			if c.Variable != "" {
				out = append(out, member(owner, &types.Symbol{
					Name: c.Variable, Kind: types.KindBinding, Detail: c.FactType,
					Range: bindingRange(locate(c.Range.Start, c.Content, c.Variable), c.Variable),
				}))
			}
			for _, k := range c.Constraints {
				if k.Binding != "" {
					out = append(out, member(owner, &types.Symbol{
						Name: k.Binding, Kind: types.KindBinding, Detail: k.Field,
						Range: bindingRange(k.Range.Start, k.Binding),
					}))
				}
			}
			if c.Pattern != nil {
				visit(c.Pattern.InnerConditions)
			}
		}
	}
	visit(conds)
	return dedupe(out)
}

// dedupe drops repeated bindings of one name at one position. A not() or
// exists() condition shares the binding of the fact pattern it wraps.
func dedupe(syms []*types.Symbol) []*types.Symbol {
	seen := make(map[types.Position]map[string]bool, len(syms))
	out := syms[:0]
	for _, s := range syms {
		if seen[s.Range.Start] == nil {
			seen[s.Range.Start] = make(map[string]bool)
		}
		if seen[s.Range.Start][s.Name] {
			continue
		}
		seen[s.Range.Start][s.Name] = true
		out = append(out, s)
	}
	return out
}

func member(owner, s *types.Symbol) *types.Symbol {
	s.Scope = append(append([]string{}, owner.Scope...), owner.Name)
	s.FullName = s.ComputeFullName()
	return s
}

// bindingRange covers a variable name that starts at start
func bindingRange(start types.Position, name string) types.Range {
	return types.Range{Start: start, End: types.Position{Line: start.Line, Character: start.Character + len(name)}}
}

// locate finds the position of the variable name in content, which
// starts at start
func locate(start types.Position, content, name string) types.Position {
	off := 0
	for {
		i := strings.Index(content[off:], name)
		if i < 0 {
			return start
		}
		off += i
		end := off + len(name)
		if end == len(content) || !isWordChar(content[end]) {
			break
		}
		off = end
	}
	before := content[:off]
	nl := strings.LastIndexByte(before, '\n')
	if nl < 0 {
		return types.Position{Line: start.Line, Character: start.Character + off}
	}
	return types.Position{Line: start.Line + strings.Count(before, "\n"), Character: off - nl - 1}
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '$'
}
