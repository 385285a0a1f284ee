package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

func errorCodes(errs []*types.ParseError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestParse_RuleWithMultiLineExists(t *testing.T) {
	res := Parse("rule \"R\"\nwhen\n exists(\n Person(age > 18)\n )\nthen\n end", nil)

	require.Len(t, res.AST.Rules, 1)
	rule := res.AST.Rules[0]
	assert.Equal(t, "R", rule.Name)
	assert.Equal(t, types.NewRange(0, 0, 6, 4), rule.Range)

	require.NotNil(t, rule.When)
	require.Len(t, rule.When.Conditions, 1)
	cond := rule.When.Conditions[0]
	assert.Equal(t, types.ConditionExists, cond.Type)
	assert.True(t, cond.IsMultiLine)
	assert.Equal(t, []int{2, 3, 4}, cond.SpannedLines)
	assert.Equal(t, "Person", cond.FactType)
	require.NotNil(t, cond.Pattern)
	assert.True(t, cond.Pattern.IsComplete)

	require.NotNil(t, rule.Then)
	assert.Equal(t, "", rule.Then.Actions)

	assert.Empty(t, res.Errors)
}

func TestParse_UnterminatedPatternTerminates(t *testing.T) {
	res := Parse("exists(\n Person(age > 18", nil)

	require.Len(t, res.Errors, 1)
	err := res.Errors[0]
	assert.Equal(t, types.CodeIncompletePattern, err.Code)
	assert.Equal(t, types.CategorySyntax, err.Category)
	assert.Contains(t, err.Message, "exists")
	assert.Equal(t, types.NewRange(0, 0, 0, 6), err.Range)

	require.Len(t, res.AST.Fragments, 1)
	pat := res.AST.Fragments[0].Pattern
	require.NotNil(t, pat)
	assert.False(t, pat.IsComplete)
	assert.Equal(t, []*types.MultiLinePattern{pat}, res.AST.Patterns())
}

func TestParse_RuleStructure(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantCodes []string
		check     func(t *testing.T, f *types.DroolsFile)
	}{
		{
			name:      "missing then",
			text:      "rule \"A\"\nwhen\n  Person()\nend",
			wantCodes: []string{types.CodeMissingThen},
			check: func(t *testing.T, f *types.DroolsFile) {
				require.Len(t, f.Rules, 1)
				assert.Nil(t, f.Rules[0].Then)
				assert.Len(t, f.Rules[0].When.Conditions, 1)
			},
		},
		{
			name:      "missing end before next rule",
			text:      "rule \"A\"\nwhen\n  Person()\nthen\n  foo();\nrule \"B\"\nwhen\nthen\nend",
			wantCodes: []string{types.CodeMissingEnd},
			check: func(t *testing.T, f *types.DroolsFile) {
				require.Len(t, f.Rules, 2)
				assert.Equal(t, "foo();", f.Rules[0].Then.Actions)
				assert.Equal(t, types.NewRange(0, 0, 4, 8), f.Rules[0].Range)
				assert.Equal(t, "B", f.Rules[1].Name)
				assert.Empty(t, f.Rules[1].When.Conditions)
			},
		},
		{
			name:      "missing then and end at EOF",
			text:      "rule \"A\"\nwhen\n  Person()",
			wantCodes: []string{types.CodeMissingEnd, types.CodeMissingThen},
		},
		{
			name: "missing when is tolerated",
			text: "rule \"A\"\nthen\n  x = 1;\nend",
			check: func(t *testing.T, f *types.DroolsFile) {
				require.Len(t, f.Rules, 1)
				assert.Nil(t, f.Rules[0].When)
				assert.Equal(t, "x = 1;", f.Rules[0].Then.Actions)
			},
		},
		{
			name:      "missing name",
			text:      "rule\nwhen\nthen\nend",
			wantCodes: []string{types.CodeMissingName},
		},
		{
			name: "attributes and extends",
			text: "rule 'Child' extends \"Base\"\n  salience 10\n  no-loop true\n  dialect \"mvel\"\nwhen\nthen\nend",
			check: func(t *testing.T, f *types.DroolsFile) {
				require.Len(t, f.Rules, 1)
				r := f.Rules[0]
				assert.Equal(t, "Child", r.Name)
				assert.Equal(t, "Base", r.Extends)
				require.Len(t, r.Attributes, 3)
				assert.Equal(t, "salience", r.Attributes[0].Name)
				assert.Equal(t, "10", r.Attributes[0].Value)
				assert.Equal(t, "no-loop", r.Attributes[1].Name)
				assert.Equal(t, `"mvel"`, r.Attributes[2].Value)
			},
		},
		{
			name:      "stray text before when",
			text:      "rule \"A\"\n  bogus stuff\nwhen\nthen\nend",
			wantCodes: []string{types.CodeUnexpectedText},
		},
		{
			name: "conditions joined by and and on separate lines",
			text: "rule \"A\"\nwhen\n  $p : Person() and Car()\n  not Person(age < 18)\n  Other() || Thing()\nthen\nend",
			check: func(t *testing.T, f *types.DroolsFile) {
				conds := f.Rules[0].When.Conditions
				require.Len(t, conds, 5)
				assert.Equal(t, "$p", conds[0].Variable)
				assert.Equal(t, "Car", conds[1].FactType)
				assert.Equal(t, types.ConditionNot, conds[2].Type)
				assert.Equal(t, "Person", conds[2].FactType)
				assert.Equal(t, "not Person(age < 18)", conds[2].Content)
				assert.Equal(t, "Thing", conds[4].FactType)
			},
		},
		{
			name: "from collect",
			text: "rule \"A\"\nwhen\n  $l : List() from collect( Person() )\nthen\nend",
			check: func(t *testing.T, f *types.DroolsFile) {
				conds := f.Rules[0].When.Conditions
				require.Len(t, conds, 1)
				assert.Equal(t, types.ConditionCollect, conds[0].Type)
				assert.Equal(t, "$l", conds[0].Variable)
				assert.Equal(t, "List", conds[0].FactType)
				require.NotNil(t, conds[0].Pattern)
				assert.Equal(t, "collect", conds[0].Pattern.Keyword)
				assert.Len(t, f.Patterns(), 1)
			},
		},
		{
			name: "multi-line fact pattern",
			text: "rule \"A\"\nwhen\n  Person(\n    age > 18,\n    name == \"x\"\n  )\nthen\nend",
			check: func(t *testing.T, f *types.DroolsFile) {
				conds := f.Rules[0].When.Conditions
				require.Len(t, conds, 1)
				assert.Equal(t, types.ConditionPattern, conds[0].Type)
				assert.True(t, conds[0].IsMultiLine)
				assert.Equal(t, []int{2, 3, 4, 5}, conds[0].SpannedLines)
				require.Len(t, conds[0].Constraints, 2)
				assert.Equal(t, types.NewRange(4, 4, 4, 15), conds[0].Constraints[1].Range)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.text, nil)
			assert.Equal(t, tt.wantCodes, errorCodes(res.Errors))
			if tt.check != nil {
				tt.check(t, res.AST)
			}
		})
	}
}

func TestParse_MalformedConditionRecovers(t *testing.T) {
	res := Parse("rule \"A\"\nwhen\n  Person(name == x]\n  Other()\nthen\n  go();\nend\nrule \"B\"\nwhen\nthen\nend", nil)

	codes := errorCodes(res.Errors)
	assert.Contains(t, codes, types.CodeMalformedCondition)
	assert.Contains(t, codes, types.CodeMismatchedBracket)
	assert.NotContains(t, codes, types.CodeMissingEnd)
	assert.NotContains(t, codes, types.CodeMissingThen)

	require.Len(t, res.AST.Rules, 2)
	a := res.AST.Rules[0]
	require.Len(t, a.When.Conditions, 1)
	generic := a.When.Conditions[0]
	assert.Equal(t, types.ConditionGeneric, generic.Type)
	assert.Equal(t, types.NewRange(2, 2, 3, 9), generic.Range)
	assert.Equal(t, "go();", a.Then.Actions)
}

func TestParse_Query(t *testing.T) {
	res := Parse("query \"adults\" (int minAge)\n  $p : Person(age >= minAge)\nend", nil)
	assert.Empty(t, res.Errors)

	require.Len(t, res.AST.Queries, 1)
	q := res.AST.Queries[0]
	assert.Equal(t, "adults", q.Name)
	assert.Equal(t, []types.Parameter{{Type: "int", Name: "minAge"}}, q.Parameters)
	assert.Equal(t, types.NewRange(0, 0, 2, 3), q.Range)
	require.Len(t, q.Conditions, 1)
	assert.Equal(t, "$p", q.Conditions[0].Variable)
	require.Len(t, q.Conditions[0].Constraints, 1)
	assert.Equal(t, ">=", q.Conditions[0].Constraints[0].Operator)
	assert.Equal(t, "minAge", q.Conditions[0].Constraints[0].Value)
}

func TestParse_QueryMissingEnd(t *testing.T) {
	res := Parse("query q\n  Person()\nrule \"A\"\nwhen\nthen\nend", nil)
	assert.Equal(t, []string{types.CodeMissingEnd}, errorCodes(res.Errors))
	require.Len(t, res.AST.Queries, 1)
	assert.Len(t, res.AST.Queries[0].Conditions, 1)
	assert.Len(t, res.AST.Rules, 1)
}

func TestParse_Declarations(t *testing.T) {
	text := `package org.acme;

import org.acme.Person;
import static org.acme.Util.*;
global java.util.List<String> names;
dialect "java"

function String greet(String name, int n) {
  return "hi {" + name;
}

declare Person extends Base
  @role(fact)
  name : String @key
  age : int
end
`
	res := Parse(text, nil)
	assert.Empty(t, res.Errors)
	f := res.AST

	require.NotNil(t, f.Package)
	assert.Equal(t, "org.acme", f.Package.Name)

	require.Len(t, f.Imports, 2)
	assert.Equal(t, "org.acme.Person", f.Imports[0].Target)
	assert.True(t, f.Imports[1].Static)
	assert.Equal(t, "org.acme.Util.*", f.Imports[1].Target)

	require.Len(t, f.Globals, 1)
	assert.Equal(t, "java.util.List<String>", f.Globals[0].Type)
	assert.Equal(t, "names", f.Globals[0].Name)

	require.Len(t, f.Attributes, 1)
	assert.Equal(t, "dialect", f.Attributes[0].Name)

	require.Len(t, f.Functions, 1)
	fn := f.Functions[0]
	assert.Equal(t, "String", fn.ReturnType)
	assert.Equal(t, "greet", fn.Name)
	assert.Equal(t, []types.Parameter{{Type: "String", Name: "name"}, {Type: "int", Name: "n"}}, fn.Parameters)
	assert.Equal(t, `return "hi {" + name;`, fn.Body)
	assert.Equal(t, types.NewRange(7, 0, 9, 1), fn.Range)

	require.Len(t, f.Declarations, 1)
	d := f.Declarations[0]
	assert.Equal(t, "Person", d.Name)
	assert.Equal(t, "Base", d.SuperType)
	assert.Equal(t, []string{"@role(fact)"}, d.Annotations)
	require.Len(t, d.Fields, 2)
	assert.Equal(t, "name", d.Fields[0].Name)
	assert.Equal(t, "String", d.Fields[0].Type)
	assert.Equal(t, []string{"@key"}, d.Fields[0].Annotations)
	assert.Equal(t, "int", d.Fields[1].Type)

	nodes := f.Nodes()
	require.Len(t, nodes, 7)
	for i := 1; i < len(nodes); i++ {
		assert.False(t, nodes[i].NodeRange().Start.Less(nodes[i-1].NodeRange().Start))
	}
}

func TestParse_UnclosedBlocks(t *testing.T) {
	t.Run("function", func(t *testing.T) {
		res := Parse("function void f() {\n  x();\nrule \"A\"\nwhen\nthen\nend", nil)
		assert.Contains(t, errorCodes(res.Errors), types.CodeMissingEnd)
		require.Len(t, res.AST.Functions, 1)
		assert.Equal(t, "x();", res.AST.Functions[0].Body)
		assert.Len(t, res.AST.Rules, 1)
	})

	t.Run("declare", func(t *testing.T) {
		res := Parse("declare T\n  a : int\nrule \"A\"\nwhen\nthen\nend", nil)
		assert.Equal(t, []string{types.CodeMissingEnd}, errorCodes(res.Errors))
		require.Len(t, res.AST.Declarations, 1)
		assert.Len(t, res.AST.Declarations[0].Fields, 1)
		assert.Len(t, res.AST.Rules, 1)
	})
}

func TestParse_StrayTextIsMerged(t *testing.T) {
	res := Parse("hello\nworld\n\nrule \"A\"\nwhen\nthen\nend", nil)
	require.Equal(t, []string{types.CodeUnexpectedText}, errorCodes(res.Errors))
	assert.Equal(t, types.NewRange(0, 0, 1, 5), res.Errors[0].Range)
	assert.Equal(t, types.SeverityWarning, res.Errors[0].Severity)
	assert.Len(t, res.AST.Rules, 1)
}

func TestParse_ValidFileHasNoSyntaxErrors(t *testing.T) {
	text := `package org.acme.rules

import org.acme.Person

rule "Adults"
    salience 10
when
    $p : Person( age >= 18, name matches "A.*" )
    not( exists( Blocked( person == $p ) ) )
    accumulate(
        Order( customer == $p, $v : value );
        $total : sum( $v )
    )
then
    System.out.println( "adult: " + $p.getName() ); // (
end

query "orders of" (Person p)
    Order( customer == p )
end
`
	res := Parse(text, nil)
	assert.Empty(t, res.ErrorsByCategory(types.CategorySyntax))
	assert.Empty(t, res.Errors)

	require.Len(t, res.AST.Rules, 1)
	conds := res.AST.Rules[0].When.Conditions
	require.Len(t, conds, 3)
	assert.Equal(t, "matches", conds[0].Constraints[1].Operator)
	assert.Equal(t, types.ConditionNot, conds[1].Type)
	assert.Equal(t, types.ConditionAccumulate, conds[2].Type)
	assert.True(t, conds[2].Pattern.IsComplete)
	assert.Len(t, conds[2].Pattern.InnerConditions, 2)
	assert.Len(t, res.AST.Patterns(), 2)
}
