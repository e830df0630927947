package apicalypse

import (
	"strconv"
	"strings"
)

// Condition is a single predicate inside a where clause.
type Condition interface {
	// String renders the predicate in query-language syntax.
	String() string
}

type compare struct {
	field string
	op    string
	value string
}

func (c compare) String() string {
	return c.field + " " + c.op + " " + c.value
}

// NotNull matches records where field is present ("field != null").
func NotNull(field string) Condition {
	return compare{field: field, op: "!=", value: "null"}
}

// IsNull matches records where field is absent ("field = null").
func IsNull(field string) Condition {
	return compare{field: field, op: "=", value: "null"}
}

// Eq creates an equality predicate. Supported values are integers,
// floats, booleans and strings; strings are quoted.
func Eq(field string, value any) Condition {
	return compare{field: field, op: "=", value: literal(value)}
}

// Gt creates a strict greater-than predicate.
func Gt(field string, value any) Condition {
	return compare{field: field, op: ">", value: literal(value)}
}

// Gte creates a greater-or-equal predicate.
func Gte(field string, value any) Condition {
	return compare{field: field, op: ">=", value: literal(value)}
}

// Lt creates a strict less-than predicate.
func Lt(field string, value any) Condition {
	return compare{field: field, op: "<", value: literal(value)}
}

// Lte creates a less-or-equal predicate.
func Lte(field string, value any) Condition {
	return compare{field: field, op: "<=", value: literal(value)}
}

// In matches records whose field contains any of ids ("field = (1,2,3)").
func In(field string, ids ...int64) Condition {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return compare{field: field, op: "=", value: "(" + strings.Join(parts, ",") + ")"}
}

type and []Condition

func (a and) String() string {
	parts := make([]string, len(a))
	for i, c := range a {
		parts[i] = c.String()
	}
	return strings.Join(parts, " & ")
}

// And joins conditions with the "&" operator.
func And(conds ...Condition) Condition {
	return and(conds)
}

func literal(v any) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return `"` + Escape(t) + `"`
	case nil:
		return "null"
	default:
		panic("apicalypse: unsupported literal type")
	}
}

// Escape backslash-escapes double quotes for use inside a quoted string.
func Escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
