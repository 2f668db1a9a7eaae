// Package query turns untrusted query-string parameters into a filtered,
// sorted, projected and paginated goqu dataset without executing it.
package query

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// Pagination defaults.
const (
	DefaultPage     = 1
	DefaultLimit    = 100
	DefaultMaxLimit = 100

	maxPage = math.MaxInt32
)

// Document is one result row keyed by public field name.
type Document map[string]any

// Result is one page of documents produced by an applied builder.
type Result struct {
	Documents []Document
	Page      int
	Limit     int
}

type comparison func(exp.IdentifierExpression, any) exp.BooleanExpression

// operators is the closed set of comparison tokens accepted in key[op]=value.
var operators = map[string]comparison{
	"gte": func(c exp.IdentifierExpression, v any) exp.BooleanExpression { return c.Gte(v) },
	"gt":  func(c exp.IdentifierExpression, v any) exp.BooleanExpression { return c.Gt(v) },
	"lte": func(c exp.IdentifierExpression, v any) exp.BooleanExpression { return c.Lte(v) },
	"lt":  func(c exp.IdentifierExpression, v any) exp.BooleanExpression { return c.Lt(v) },
}

// elementOperators compare a value with the elements of an array column.
// The value is on the left, so each comparison is mirrored.
var elementOperators = map[string]string{
	"gte": "? <= ANY(?)",
	"gt":  "? < ANY(?)",
	"lte": "? >= ANY(?)",
	"lt":  "? > ANY(?)",
}

// noMatch is the predicate used for anything that cannot be a valid filter.
func noMatch() exp.Expression {
	return goqu.L("FALSE")
}

// Builder applies request parameters to a base dataset. Each step returns the
// builder and only modifies the held dataset; nothing is executed.
type Builder struct {
	ds       *goqu.SelectDataset
	schema   *Schema
	params   Params
	maxLimit int
	page     int
	limit    int
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxLimit caps the page size. Zero or negative disables the cap.
func WithMaxLimit(n int) Option {
	return func(b *Builder) { b.maxLimit = n }
}

// New returns a builder over base. base may already carry restrictions such
// as a visibility or parent scope; filters are conjoined with them.
func New(base *goqu.SelectDataset, schema *Schema, params Params, opts ...Option) *Builder {
	if params == nil {
		params = Params{}
	}
	b := &Builder{
		ds:       base,
		schema:   schema,
		params:   params,
		maxLimit: DefaultMaxLimit,
		page:     DefaultPage,
		limit:    DefaultLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Apply runs Filter, Sort, LimitFields and Paginate in that order.
func (b *Builder) Apply() *Builder {
	return b.Filter().Sort().LimitFields().Paginate()
}

// Filter narrows the dataset by every non-reserved parameter. Plain values
// become equality (IN for repeated values), bracketed operators from the
// closed set become comparisons. Unknown fields, unknown operators and
// values that do not cast to the field's kind match nothing.
func (b *Builder) Filter() *Builder {
	keys := make([]string, 0, len(b.params))
	for k := range b.params {
		if !IsReserved(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var preds []exp.Expression
	for _, key := range keys {
		preds = append(preds, b.predicates(key, b.params[key])...)
	}
	if len(preds) > 0 {
		b.ds = b.ds.Where(preds...)
	}
	return b
}

func (b *Builder) predicates(key string, p *Param) []exp.Expression {
	f, ok := b.schema.Lookup(key)
	if !ok {
		return []exp.Expression{noMatch()}
	}
	if f.Kind.array() {
		return elementPredicates(f, p)
	}
	col := goqu.I(f.Column)

	var preds []exp.Expression
	if len(p.Values) > 0 {
		vals, ok := castAll(f, p.Values)
		if !ok {
			return []exp.Expression{noMatch()}
		}
		if len(vals) == 1 {
			preds = append(preds, col.Eq(vals[0]))
		} else {
			preds = append(preds, col.In(vals...))
		}
	}

	for _, op := range sortedOps(p) {
		cmp, ok := operators[op]
		if !ok {
			return []exp.Expression{noMatch()}
		}
		vals, ok := castAll(f, p.Ops[op])
		if !ok {
			return []exp.Expression{noMatch()}
		}
		for _, v := range vals {
			preds = append(preds, cmp(col, v))
		}
	}
	return preds
}

// elementPredicates filters an array column. A plain value matches when any
// element equals it; repeated values match when any of them does.
func elementPredicates(f Field, p *Param) []exp.Expression {
	col := goqu.I(f.Column)

	var preds []exp.Expression
	if len(p.Values) > 0 {
		vals, ok := castAll(f, p.Values)
		if !ok {
			return []exp.Expression{noMatch()}
		}
		alts := make([]exp.Expression, 0, len(vals))
		for _, v := range vals {
			alts = append(alts, goqu.L("? = ANY(?)", v, col))
		}
		preds = append(preds, goqu.Or(alts...))
	}

	for _, op := range sortedOps(p) {
		tmpl, ok := elementOperators[op]
		if !ok {
			return []exp.Expression{noMatch()}
		}
		vals, ok := castAll(f, p.Ops[op])
		if !ok {
			return []exp.Expression{noMatch()}
		}
		for _, v := range vals {
			preds = append(preds, goqu.L(tmpl, v, col))
		}
	}
	return preds
}

func castAll(f Field, raws []string) ([]any, bool) {
	vals := make([]any, 0, len(raws))
	for _, raw := range raws {
		v, ok := f.cast(raw)
		if !ok {
			return nil, false
		}
		vals = append(vals, v)
	}
	return vals, true
}

func sortedOps(p *Param) []string {
	ops := make([]string, 0, len(p.Ops))
	for op := range p.Ops {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Sort orders by sort=a,-b (leading "-" is descending), falling back to the
// schema's default sort. The schema key is always the last tie-breaker.
func (b *Builder) Sort() *Builder {
	order, keyed := b.orderBy(b.params.Get(KeySort))
	if len(order) == 0 {
		order, keyed = b.orderBy(b.schema.defaultSort)
	}
	if !keyed {
		if f, ok := b.schema.Lookup(b.schema.key); ok {
			order = append(order, goqu.I(f.Column).Asc())
		}
	}
	b.ds = b.ds.Order(order...)
	return b
}

func (b *Builder) orderBy(list string) (order []exp.OrderedExpression, keyed bool) {
	seen := make(map[string]bool)
	for _, name := range splitList(list) {
		desc := strings.HasPrefix(name, "-")
		name = strings.TrimPrefix(name, "-")
		f, ok := b.schema.Lookup(name)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		if name == b.schema.key {
			keyed = true
		}
		if desc {
			order = append(order, goqu.I(f.Column).Desc())
		} else {
			order = append(order, goqu.I(f.Column).Asc())
		}
	}
	return order, keyed
}

// LimitFields projects fields=a,b (plus the schema key) or, when absent,
// every field that is not internal.
func (b *Builder) LimitFields() *Builder {
	var cols []any
	if names := splitList(b.params.Get(KeyFields)); len(names) > 0 {
		seen := map[string]bool{}
		if f, ok := b.schema.Lookup(b.schema.key); ok {
			cols = append(cols, goqu.I(f.Column).As(f.Name))
			seen[f.Name] = true
		}
		for _, name := range names {
			f, ok := b.schema.Lookup(name)
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			cols = append(cols, goqu.I(f.Column).As(f.Name))
		}
	} else {
		for _, f := range b.schema.Fields() {
			if !f.Internal {
				cols = append(cols, goqu.I(f.Column).As(f.Name))
			}
		}
	}
	b.ds = b.ds.Select(cols...)
	return b
}

// Paginate applies page (default 1) and limit (default 100, capped at the
// builder's maximum). Values that are not positive integers use the defaults.
func (b *Builder) Paginate() *Builder {
	b.page = min(positiveInt(b.params.Get(KeyPage), DefaultPage), maxPage)
	b.limit = positiveInt(b.params.Get(KeyLimit), DefaultLimit)
	if b.maxLimit > 0 && b.limit > b.maxLimit {
		b.limit = b.maxLimit
	}
	b.ds = b.ds.Offset(uint(b.Skip())).Limit(uint(b.limit))
	return b
}

// Dataset returns the configured, unexecuted dataset.
func (b *Builder) Dataset() *goqu.SelectDataset {
	return b.ds
}

// ToSQL renders the dataset with positional placeholders.
func (b *Builder) ToSQL() (string, []any, error) {
	return b.ds.Prepared(true).ToSQL()
}

// Page returns the page applied by Paginate.
func (b *Builder) Page() int { return b.page }

// Limit returns the page size applied by Paginate.
func (b *Builder) Limit() int { return b.limit }

// Skip returns the number of rows skipped by Paginate.
func (b *Builder) Skip() int { return (b.page - 1) * b.limit }

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
