package main

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// rowFilter matches free text against a row. The filter is split into
// whitespace-separated terms; a text is included when it contains any term,
// ignoring case. The empty filter includes everything.
type rowFilter struct {
	terms []string
}

func newRowFilter(s string) rowFilter {
	var f rowFilter
	for _, t := range strings.Fields(s) {
		f.terms = append(f.terms, strings.ToLower(t))
	}
	return f
}

func (f rowFilter) include(text string) bool {
	if len(f.terms) == 0 {
		return true
	}
	text = strings.ToLower(text)
	for _, t := range f.terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// includeRow applies the filter to the thread name, location and scope name.
func (f rowFilter) includeRow(key statsKey, d scopeDetails) bool {
	return f.include(key.thread) || f.include(d.location()) || f.include(d.name)
}

// ---------------------------------------------------------------------------
// --where predicates
// ---------------------------------------------------------------------------

// wherePredicate evaluates a Starlark boolean expression against a row, e.g.
//
//	count > 100 and mean_self_ns > 50000
type wherePredicate struct {
	expr   syntax.Expr
	thread *starlark.Thread
}

func compileWhere(src string) (*wherePredicate, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	expr, err := (&syntax.FileOptions{}).ParseExpr("where", src, 0)
	if err != nil {
		return nil, fmt.Errorf("--where: %w", err)
	}
	return &wherePredicate{expr: expr, thread: &starlark.Thread{Name: "where"}}, nil
}

func (p *wherePredicate) match(g *groupedStats, d scopeDetails, depth int) (bool, error) {
	if p == nil {
		return true, nil
	}
	s := g.stats
	env := starlark.StringDict{
		"thread":       starlark.String(g.key.thread),
		"id":           starlark.MakeUint64(g.key.id),
		"name":         starlark.String(d.name),
		"location":     starlark.String(d.location()),
		"count":        starlark.MakeInt(s.count),
		"bytes":        starlark.MakeInt(s.bytes),
		"self_ns":      starlark.MakeInt64(s.totalSelfNs),
		"total_ns":     starlark.MakeInt64(s.totalNs),
		"max_ns":       starlark.MakeInt64(s.maxNs),
		"mean_self_ns": starlark.Float(s.meanSelfNs()),
		"mean_ns":      starlark.Float(s.meanNs()),
		"depth":        starlark.MakeInt(depth),
	}
	v, err := starlark.EvalExprOptions(&syntax.FileOptions{}, p.thread, p.expr, env)
	if err != nil {
		return false, fmt.Errorf("--where: %w", err)
	}
	return bool(v.Truth()), nil
}
