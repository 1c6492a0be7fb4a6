package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Quoter is the minimal surface Render needs from a driver: the
// ability to quote an identifier. Renderers never hardcode a quote
// style — see driver.Driver.QuoteIdentifier.
type Quoter func(name string) string

var qualifiedPair = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\.[A-Za-z_][A-Za-z0-9_]*`)

func quoteQualifiedPairs(sql string, quote Quoter) string {
	return qualifiedPair.ReplaceAllStringFunc(sql, quote)
}

// Render serialises plan into SQL text and returns the combined
// parameter map to bind against a prepared Statement; the same map is
// stored in plan.Parameters.
func Render(plan *QueryPlan, quote Quoter) (string, map[string]any, error) {
	var (
		sql    string
		params map[string]any
		err    error
	)
	switch plan.Action {
	case Select:
		sql, params, err = renderSelect(plan, quote)
	case Insert:
		sql, params, err = renderInsert(plan, quote)
	case Update:
		sql, params, err = renderUpdate(plan, quote)
	case Delete:
		sql, params, err = renderDelete(plan, quote)
	default:
		return "", nil, fmt.Errorf("query: unknown action %v", plan.Action)
	}
	if err != nil {
		return "", nil, err
	}
	plan.Parameters = params
	return sql, params, nil
}

func renderWhere(plan *QueryPlan, params map[string]any, quote Quoter) string {
	if plan.Where == nil || plan.Where.Empty() {
		return ""
	}
	sql, whereParams := plan.Where.Compile()
	for k, v := range whereParams {
		params[k] = v
	}
	return " WHERE " + quoteQualifiedPairs(sql, quote)
}

func renderSelect(plan *QueryPlan, quote Quoter) (string, map[string]any, error) {
	params := map[string]any{}
	var b strings.Builder

	b.WriteString("SELECT ")
	if plan.Distinct {
		b.WriteString("DISTINCT ")
	}
	cols := make([]string, len(plan.Columns))
	for i, c := range plan.Columns {
		cols[i] = fmt.Sprintf("%s AS %s", quoteQualifiedPairs(c.Expr, quote), quote(c.Alias))
	}
	b.WriteString(strings.Join(cols, ", "))

	b.WriteString(" FROM ")
	b.WriteString(quote(plan.Table))
	b.WriteString(" AS ")
	b.WriteString(quote(plan.Alias))

	for _, j := range plan.Joins {
		b.WriteString(" ")
		b.WriteString(string(j.Kind))
		b.WriteString(" ")
		b.WriteString(quote(j.Table))
		b.WriteString(" AS ")
		b.WriteString(quote(j.Alias))
		b.WriteString(" ON ")
		b.WriteString(quoteQualifiedPairs(j.OnSQL, quote))
	}

	b.WriteString(renderWhere(plan, params, quote))

	if len(plan.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		cols := make([]string, len(plan.GroupBy))
		for i, c := range plan.GroupBy {
			cols[i] = quoteQualifiedPairs(c, quote)
		}
		b.WriteString(strings.Join(cols, ", "))
	}

	if len(plan.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		terms := make([]string, len(plan.OrderBy))
		for i, o := range plan.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms[i] = fmt.Sprintf("%s %s", quoteQualifiedPairs(o.Column, quote), dir)
		}
		b.WriteString(strings.Join(terms, ", "))
	}

	if plan.Limit != nil {
		b.WriteString(" LIMIT " + strconv.Itoa(*plan.Limit))
	}
	if plan.Offset != nil {
		b.WriteString(" OFFSET " + strconv.Itoa(*plan.Offset))
	}

	return b.String(), params, nil
}

func renderInsert(plan *QueryPlan, quote Quoter) (string, map[string]any, error) {
	params := map[string]any{}
	columns := make([]string, 0, len(plan.Values))
	placeholders := make([]string, 0, len(plan.Values))
	for _, cv := range plan.Values {
		columns = append(columns, quote(cv.Column))
		placeholders = append(placeholders, ":"+cv.Column)
		params[cv.Column] = cv.Value
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(plan.Table), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if plan.ReturningColumn != "" {
		sql += " RETURNING " + quote(plan.ReturningColumn)
	}
	return sql, params, nil
}

func renderUpdate(plan *QueryPlan, quote Quoter) (string, map[string]any, error) {
	params := map[string]any{}
	sets := make([]string, 0, len(plan.Values))
	for _, cv := range plan.Values {
		sets = append(sets, fmt.Sprintf("%s = :%s", quote(cv.Column), cv.Column))
		params[cv.Column] = cv.Value
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("UPDATE %s SET %s", quote(plan.Table), strings.Join(sets, ", ")))
	b.WriteString(renderWhere(plan, params, quote))
	return b.String(), params, nil
}

func renderDelete(plan *QueryPlan, quote Quoter) (string, map[string]any, error) {
	params := map[string]any{}
	var b strings.Builder
	b.WriteString("DELETE FROM " + quote(plan.Table))
	b.WriteString(renderWhere(plan, params, quote))
	return b.String(), params, nil
}
