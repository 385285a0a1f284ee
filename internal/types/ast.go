package types

import "sort"

// Node is implemented by every top-level AST declaration
type Node interface {
	NodeRange() Range
}

// DroolsFile is the root of a parsed document
type DroolsFile struct {
	Package      *Package          `json:"package,omitempty" yaml:"package,omitempty"`
	Attributes   []*RuleAttribute  `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Imports      []*Import         `json:"imports,omitempty" yaml:"imports,omitempty"`
	Globals      []*Global         `json:"globals,omitempty" yaml:"globals,omitempty"`
	Functions    []*Function       `json:"functions,omitempty" yaml:"functions,omitempty"`
	Rules        []*Rule           `json:"rules,omitempty" yaml:"rules,omitempty"`
	Queries      []*Query          `json:"queries,omitempty" yaml:"queries,omitempty"`
	Declarations []*Declaration    `json:"declarations,omitempty" yaml:"declarations,omitempty"`
	// Fragments are conditions found outside any rule or query, usually
	// while a rule is still being typed
	Fragments []*Condition `json:"fragments,omitempty" yaml:"fragments,omitempty"`
	// Comments are the block comments spanning more than one line
	Comments []Range `json:"comments,omitempty" yaml:"comments,omitempty"`
	Range    Range   `json:"range" yaml:"range"`
}

// InComment reports whether line starts inside a block comment opened on
// an earlier line
func (f *DroolsFile) InComment(line int) bool {
	for _, c := range f.Comments {
		if c.Start.Line < line && line <= c.End.Line {
			return true
		}
	}
	return false
}

// Nodes returns all top-level declarations ordered by start line
func (f *DroolsFile) Nodes() []Node {
	var nodes []Node
	if f.Package != nil {
		nodes = append(nodes, f.Package)
	}
	for _, n := range f.Attributes {
		nodes = append(nodes, n)
	}
	for _, n := range f.Imports {
		nodes = append(nodes, n)
	}
	for _, n := range f.Globals {
		nodes = append(nodes, n)
	}
	for _, n := range f.Functions {
		nodes = append(nodes, n)
	}
	for _, n := range f.Rules {
		nodes = append(nodes, n)
	}
	for _, n := range f.Queries {
		nodes = append(nodes, n)
	}
	for _, n := range f.Declarations {
		nodes = append(nodes, n)
	}
	for _, n := range f.Fragments {
		nodes = append(nodes, n)
	}
	sortNodes(nodes)
	return nodes
}

// Add appends a declaration to the slice matching its kind
func (f *DroolsFile) Add(n Node) {
	switch v := n.(type) {
	case *Package:
		f.Package = v
	case *RuleAttribute:
		f.Attributes = append(f.Attributes, v)
	case *Import:
		f.Imports = append(f.Imports, v)
	case *Global:
		f.Globals = append(f.Globals, v)
	case *Function:
		f.Functions = append(f.Functions, v)
	case *Rule:
		f.Rules = append(f.Rules, v)
	case *Query:
		f.Queries = append(f.Queries, v)
	case *Declaration:
		f.Declarations = append(f.Declarations, v)
	case *Condition:
		f.Fragments = append(f.Fragments, v)
	}
}

// Patterns returns every top-level multi-line pattern in the file
func (f *DroolsFile) Patterns() []*MultiLinePattern {
	var out []*MultiLinePattern
	collect := func(conds []*Condition) {
		for _, c := range conds {
			if c.Pattern != nil {
				out = append(out, c.Pattern)
			}
		}
	}
	for _, r := range f.Rules {
		if r.When != nil {
			collect(r.When.Conditions)
		}
	}
	for _, q := range f.Queries {
		collect(q.Conditions)
	}
	collect(f.Fragments)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Range.Start.Less(out[j].Range.Start)
	})
	return out
}

func sortNodes(nodes []Node) {
	// insertion sort: declarations arrive almost ordered
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].NodeRange().Start.Less(nodes[j-1].NodeRange().Start); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

// Package is the `package a.b.c` declaration
type Package struct {
	Name  string `json:"name" yaml:"name"`
	Range Range  `json:"range" yaml:"range"`
}

func (p *Package) NodeRange() Range { return p.Range }

// Import is an `import`, `import static` or `import function` line
type Import struct {
	Target   string `json:"target" yaml:"target"`
	Static   bool   `json:"static,omitempty" yaml:"static,omitempty"`
	Function bool   `json:"function,omitempty" yaml:"function,omitempty"`
	Range    Range  `json:"range" yaml:"range"`
}

func (i *Import) NodeRange() Range { return i.Range }

// Global is a `global Type name` declaration
type Global struct {
	Type  string `json:"type" yaml:"type"`
	Name  string `json:"name" yaml:"name"`
	Range Range  `json:"range" yaml:"range"`
}

func (g *Global) NodeRange() Range { return g.Range }

// Parameter of a function or query
type Parameter struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	Name string `json:"name" yaml:"name"`
}

// Function is a `function Type name(params) { ... }` block
type Function struct {
	ReturnType string      `json:"returnType" yaml:"returnType"`
	Name       string      `json:"name" yaml:"name"`
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Body       string      `json:"body" yaml:"body"`
	Range      Range       `json:"range" yaml:"range"`
}

func (f *Function) NodeRange() Range { return f.Range }

// RuleAttribute is a rule (or package level) attribute like `salience 10`
type RuleAttribute struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	Range Range  `json:"range" yaml:"range"`
}

func (a *RuleAttribute) NodeRange() Range { return a.Range }

// Rule is a named when/then unit. When and Then may be nil while editing.
type Rule struct {
	Name       string           `json:"name" yaml:"name"`
	Extends    string           `json:"extends,omitempty" yaml:"extends,omitempty"`
	Attributes []*RuleAttribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	When       *WhenClause      `json:"when,omitempty" yaml:"when,omitempty"`
	Then       *ThenClause      `json:"then,omitempty" yaml:"then,omitempty"`
	Range      Range            `json:"range" yaml:"range"`
}

func (r *Rule) NodeRange() Range { return r.Range }

// WhenClause holds the left hand side conditions
type WhenClause struct {
	Conditions []*Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Range      Range        `json:"range" yaml:"range"`
}

// ThenClause holds the raw consequence code
type ThenClause struct {
	Actions string `json:"actions" yaml:"actions"`
	Range   Range  `json:"range" yaml:"range"`
}

// Query is a named set of conditions with optional parameters
type Query struct {
	Name       string       `json:"name" yaml:"name"`
	Parameters []Parameter  `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Conditions []*Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Range      Range        `json:"range" yaml:"range"`
}

func (q *Query) NodeRange() Range { return q.Range }

// Declaration is a `declare Type ... end` block
type Declaration struct {
	Name        string   `json:"name" yaml:"name"`
	SuperType   string   `json:"superType,omitempty" yaml:"superType,omitempty"`
	Annotations []string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Fields      []*Field `json:"fields,omitempty" yaml:"fields,omitempty"`
	Range       Range    `json:"range" yaml:"range"`
}

func (d *Declaration) NodeRange() Range { return d.Range }

// Field of a declared type
type Field struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Annotations []string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Range       Range    `json:"range" yaml:"range"`
}
