package index

import (
	"regexp"
	"sort"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// Index provides symbol lookup for one parsed document. It is built from
// a parse result and never changes afterwards.
type Index struct {
	uri string

	// Primary index: FullName -> definitions
	symbols map[string][]*types.Symbol

	// Short name index: Name -> FullNames
	shortNames map[string][]string

	// Top-level symbols in document order
	outline []*types.Symbol
}

// New indexes the declarations of file
func New(uri string, file *types.DroolsFile) *Index {
	idx := &Index{
		uri:        uri,
		symbols:    make(map[string][]*types.Symbol),
		shortNames: make(map[string][]string),
	}
	if file == nil {
		return idx
	}

	idx.outline = collect(file)
	for _, sym := range idx.outline {
		idx.add(sym)
		for _, child := range sym.Children {
			idx.add(child)
		}
	}
	return idx
}

func (idx *Index) add(sym *types.Symbol) {
	idx.symbols[sym.FullName] = append(idx.symbols[sym.FullName], sym)
	if !contains(idx.shortNames[sym.Name], sym.FullName) {
		idx.shortNames[sym.Name] = append(idx.shortNames[sym.Name], sym.FullName)
	}
}

// URI returns the document the index was built for
func (idx *Index) URI() string {
	return idx.uri
}

// Outline returns the top-level symbols with their children
func (idx *Index) Outline() []*types.Symbol {
	return idx.outline
}

// FindDefinitions returns definitions matching the symbol name
// Supports both short names ("Adults") and full names ("org.acme/Adults")
func (idx *Index) FindDefinitions(name string) []*types.Symbol {
	// Try exact full name match first
	if syms, ok := idx.symbols[name]; ok {
		result := make([]*types.Symbol, len(syms))
		copy(result, syms)
		return result
	}

	fullNames, ok := idx.shortNames[name]
	if !ok {
		return nil
	}

	var result []*types.Symbol
	for _, fullName := range fullNames {
		result = append(result, idx.symbols[fullName]...)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Range.Start.Less(result[j].Range.Start)
	})
	return result
}

// Enclosing returns the rule or query whose range contains pos
func (idx *Index) Enclosing(pos types.Position) *types.Symbol {
	for _, sym := range idx.outline {
		if (sym.Kind == types.KindRule || sym.Kind == types.KindQuery) && sym.Range.Contains(pos) {
			return sym
		}
	}
	return nil
}

// FindBinding finds the binding of a $variable visible at pos: the first
// one with that name in the enclosing rule or query
func (idx *Index) FindBinding(name string, pos types.Position) *types.Symbol {
	owner := idx.Enclosing(pos)
	if owner == nil {
		return nil
	}
	for _, child := range owner.Children {
		if child.Kind == types.KindBinding && child.Name == name {
			return child
		}
	}
	return nil
}

// FindReferences returns every whole-word occurrence of a $variable in
// the rule or query enclosing pos. lines is the document text split on
// line breaks.
func (idx *Index) FindReferences(lines []string, name string, pos types.Position) []types.Range {
	owner := idx.Enclosing(pos)
	if owner == nil || name == "" {
		return nil
	}
	re := regexp.MustCompile(regexp.QuoteMeta(name) + `(?:[^\w$]|$)`)

	var out []types.Range
	for n := owner.Range.Start.Line; n <= owner.Range.End.Line && n < len(lines); n++ {
		line := lines[n]
		for _, m := range re.FindAllStringIndex(line, -1) {
			start := m[0]
			if start > 0 && isWordChar(line[start-1]) {
				continue
			}
			r := types.NewRange(n, start, n, start+len(name))
			if owner.Range.Contains(r.Start) {
				out = append(out, r)
			}
		}
	}
	return out
}

// SymbolCount returns the total number of indexed symbols
func (idx *Index) SymbolCount() int {
	count := 0
	for _, syms := range idx.symbols {
		count += len(syms)
	}
	return count
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
