package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// MaxAnyOfValues caps the value set of a single any-of condition.
const MaxAnyOfValues = 64

// Doc is anything a filter can be evaluated against in process.
type Doc interface {
	Values(field string) []string
	Numeric(field string) (float64, bool)
}

// Expression is a structured filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// WithMust returns a copy of e with c appended to the must group.
// The receiver is not modified.
func (e Expression) WithMust(c Condition) Expression {
	must := make([]Condition, 0, len(e.must)+1)
	must = append(must, e.must...)
	return Expression{must: append(must, c), should: e.should, mustNot: e.mustNot}
}

// Matches evaluates the expression against d.
func (e Expression) Matches(d Doc) bool {
	for _, c := range e.must {
		if !c.Matches(d) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.Matches(d) {
			return false
		}
	}
	if len(e.should) == 0 {
		return true
	}
	for _, c := range e.should {
		if c.Matches(d) {
			return true
		}
	}
	return false
}

// String renders a canonical form, stable for equal expressions built in the same order.
func (e Expression) String() string {
	if e.IsEmpty() {
		return ""
	}
	var b strings.Builder
	writeGroup(&b, "must", e.must)
	writeGroup(&b, "should", e.should)
	writeGroup(&b, "must_not", e.mustNot)
	return b.String()
}

func writeGroup(b *strings.Builder, name string, conds []Condition) {
	if len(conds) == 0 {
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(name)
	b.WriteByte('(')
	for i, c := range conds {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.String())
	}
	b.WriteByte(')')
}

// Condition is a single filter clause: a tag match, an any-of set or a numeric range.
type Condition struct {
	key       string
	match     string
	anyOf     []string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewAnyOf creates a condition satisfied when the field holds any of values.
func NewAnyOf(key string, values []string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return Condition{}, fmt.Errorf("any_of requires at least one value for key %q", key)
	}
	if len(clean) > MaxAnyOfValues {
		return Condition{}, fmt.Errorf("too many any_of values for key %q (max %d)", key, MaxAnyOfValues)
	}
	return Condition{key: key, anyOf: clean}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// AnyOf returns the accepted value set.
func (c Condition) AnyOf() []string { return c.anyOf }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsAnyOf reports whether this is an any-of condition.
func (c Condition) IsAnyOf() bool { return len(c.anyOf) > 0 }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Matches evaluates the condition against d. Tag comparison is case-insensitive.
func (c Condition) Matches(d Doc) bool {
	switch {
	case c.IsRange():
		v, ok := d.Numeric(c.key)
		return ok && c.rangeExpr.Contains(v)
	case c.IsAnyOf():
		for _, have := range d.Values(c.key) {
			for _, want := range c.anyOf {
				if strings.EqualFold(have, want) {
					return true
				}
			}
		}
		return false
	case c.IsMatch():
		for _, have := range d.Values(c.key) {
			if strings.EqualFold(have, c.match) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (c Condition) String() string {
	switch {
	case c.IsRange():
		return c.key + ":" + c.rangeExpr.String()
	case c.IsAnyOf():
		return c.key + ":{" + strings.Join(c.anyOf, "|") + "}"
	default:
		return c.key + "=" + c.match
	}
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v satisfies every boundary.
func (r Range) Contains(v float64) bool {
	if r.gt != nil && v <= *r.gt {
		return false
	}
	if r.gte != nil && v < *r.gte {
		return false
	}
	if r.lt != nil && v >= *r.lt {
		return false
	}
	if r.lte != nil && v > *r.lte {
		return false
	}
	return true
}

func (r Range) String() string {
	lo, hi := "[-inf", "+inf]"
	if r.gt != nil {
		lo = "(" + fmtFloat(*r.gt)
	} else if r.gte != nil {
		lo = "[" + fmtFloat(*r.gte)
	}
	if r.lt != nil {
		hi = fmtFloat(*r.lt) + ")"
	} else if r.lte != nil {
		hi = fmtFloat(*r.lte) + "]"
	}
	return lo + "," + hi
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
