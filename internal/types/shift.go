package types

// ShiftNode returns a deep copy of n moved by delta lines.
// A zero delta returns n itself.
func ShiftNode(n Node, delta int) Node {
	if delta == 0 {
		return n
	}
	switch v := n.(type) {
	case *Package:
		c := *v
		c.Range = shiftRange(c.Range, delta)
		return &c
	case *RuleAttribute:
		return shiftAttribute(v, delta)
	case *Import:
		c := *v
		c.Range = shiftRange(c.Range, delta)
		return &c
	case *Global:
		c := *v
		c.Range = shiftRange(c.Range, delta)
		return &c
	case *Function:
		c := *v
		c.Parameters = cloneParams(v.Parameters)
		c.Range = shiftRange(c.Range, delta)
		return &c
	case *Rule:
		return shiftRule(v, delta)
	case *Query:
		c := *v
		c.Parameters = cloneParams(v.Parameters)
		c.Conditions = shiftConditions(v.Conditions, delta)
		c.Range = shiftRange(c.Range, delta)
		return &c
	case *Condition:
		return shiftCondition(v, delta)
	case *Declaration:
		c := *v
		c.Annotations = cloneStrings(v.Annotations)
		if v.Fields != nil {
			c.Fields = make([]*Field, len(v.Fields))
			for i, f := range v.Fields {
				fc := *f
				fc.Annotations = cloneStrings(f.Annotations)
				fc.Range = shiftRange(f.Range, delta)
				c.Fields[i] = &fc
			}
		}
		c.Range = shiftRange(c.Range, delta)
		return &c
	}
	return n
}

func shiftRule(r *Rule, delta int) *Rule {
	c := *r
	if r.Attributes != nil {
		c.Attributes = make([]*RuleAttribute, len(r.Attributes))
		for i, a := range r.Attributes {
			c.Attributes[i] = shiftAttribute(a, delta)
		}
	}
	if r.When != nil {
		c.When = &WhenClause{
			Conditions: shiftConditions(r.When.Conditions, delta),
			Range:      shiftRange(r.When.Range, delta),
		}
	}
	if r.Then != nil {
		c.Then = &ThenClause{Actions: r.Then.Actions, Range: shiftRange(r.Then.Range, delta)}
	}
	c.Range = shiftRange(r.Range, delta)
	return &c
}

func shiftAttribute(a *RuleAttribute, delta int) *RuleAttribute {
	c := *a
	c.Range = shiftRange(a.Range, delta)
	return &c
}

func shiftConditions(conds []*Condition, delta int) []*Condition {
	if conds == nil {
		return nil
	}
	out := make([]*Condition, len(conds))
	for i, cond := range conds {
		out[i] = shiftCondition(cond, delta)
	}
	return out
}

func shiftCondition(cond *Condition, delta int) *Condition {
	c := *cond
	if cond.Constraints != nil {
		c.Constraints = make([]*Constraint, len(cond.Constraints))
		for i, k := range cond.Constraints {
			kc := *k
			kc.Range = shiftRange(k.Range, delta)
			c.Constraints[i] = &kc
		}
	}
	if cond.SpannedLines != nil {
		c.SpannedLines = make([]int, len(cond.SpannedLines))
		for i, l := range cond.SpannedLines {
			c.SpannedLines[i] = l + delta
		}
	}
	if cond.Pattern != nil {
		c.Pattern = ShiftPattern(cond.Pattern, delta)
	}
	c.Range = shiftRange(cond.Range, delta)
	return &c
}

// ShiftPattern deep copies a pattern tree moved by delta lines
func ShiftPattern(p *MultiLinePattern, delta int) *MultiLinePattern {
	c := *p
	if p.Nested != nil {
		c.Nested = make([]*MultiLinePattern, len(p.Nested))
		for i, n := range p.Nested {
			c.Nested[i] = ShiftPattern(n, delta)
		}
	}
	if p.Parentheses != nil {
		c.Parentheses = make([]Range, len(p.Parentheses))
		for i, r := range p.Parentheses {
			c.Parentheses[i] = shiftRange(r, delta)
		}
	}
	c.InnerConditions = shiftConditions(p.InnerConditions, delta)
	c.Range = shiftRange(p.Range, delta)
	return &c
}

// ShiftError copies a parse error moved by delta lines
func ShiftError(e *ParseError, delta int) *ParseError {
	c := *e
	c.Range = shiftRange(e.Range, delta)
	return &c
}

func shiftRange(r Range, delta int) Range {
	r.Start.Line += delta
	r.End.Line += delta
	return r
}

func cloneParams(p []Parameter) []Parameter {
	if p == nil {
		return nil
	}
	return append([]Parameter(nil), p...)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
