package milvus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/modeldex/internal/domain/catalog"
	"github.com/kailas-cloud/modeldex/internal/domain/search/filter"
)

// listFields are stored as separator-joined VarChar columns and matched
// with LIKE.
var listFields = map[string]bool{
	catalog.FieldCapabilities: true,
	catalog.FieldTags:         true,
}

// buildExpr translates a filter expression into a Milvus boolean expression.
func buildExpr(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	var parts []string
	for _, c := range expr.Must() {
		parts = append(parts, condExpr(c))
	}
	if should := expr.Should(); len(should) > 0 {
		alts := make([]string, len(should))
		for i, c := range should {
			alts[i] = condExpr(c)
		}
		parts = append(parts, "("+strings.Join(alts, " || ")+")")
	}
	for _, c := range expr.MustNot() {
		parts = append(parts, "!("+condExpr(c)+")")
	}
	return strings.Join(parts, " && ")
}

func condExpr(c filter.Condition) string {
	key := c.Key()
	switch {
	case c.IsMatch():
		return matchExpr(key, c.Match())
	case c.IsAnyOf():
		if !listFields[key] {
			quoted := make([]string, len(c.AnyOf()))
			for i, v := range c.AnyOf() {
				quoted[i] = quote(v)
			}
			return fmt.Sprintf("%s in [%s]", key, strings.Join(quoted, ", "))
		}
		alts := make([]string, len(c.AnyOf()))
		for i, v := range c.AnyOf() {
			alts[i] = matchExpr(key, v)
		}
		return "(" + strings.Join(alts, " || ") + ")"
	case c.IsRange():
		return rangeExpr(key, *c.Range())
	}
	return "true"
}

func matchExpr(key, value string) string {
	if listFields[key] {
		return fmt.Sprintf("%s like %s", key, quote("%"+value+"%"))
	}
	return fmt.Sprintf("%s == %s", key, quote(value))
}

func rangeExpr(key string, r filter.Range) string {
	var parts []string
	if r.GT() != nil {
		parts = append(parts, key+" > "+num(*r.GT()))
	}
	if r.GTE() != nil {
		parts = append(parts, key+" >= "+num(*r.GTE()))
	}
	if r.LT() != nil {
		parts = append(parts, key+" < "+num(*r.LT()))
	}
	if r.LTE() != nil {
		parts = append(parts, key+" <= "+num(*r.LTE()))
	}
	if len(parts) == 0 {
		return "true"
	}
	return strings.Join(parts, " && ")
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
