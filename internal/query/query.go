// Package query evaluates attribute clauses against feature attribute sets.
//
// The clause syntax belongs to the expression engine (govaluate), not to this
// layer: clauses are passed through opaquely apart from one SQL-friendliness
// rewrite (a bare `=` becomes `==`, `<>` becomes `!=`). Anything the engine
// rejects surfaces as InvalidClauseError.
package query

import (
	"fmt"
	"regexp"

	"github.com/Knetic/govaluate"
)

// InvalidClauseError indicates the expression engine rejected an attribute
// clause, either at compile time or against a particular attribute set.
type InvalidClauseError struct {
	Clause string
	Reason string
}

func (e *InvalidClauseError) Error() string {
	return fmt.Sprintf("invalid attribute clause %q: %s", e.Clause, e.Reason)
}

var (
	bareEquals = regexp.MustCompile(`([^=!<>])=([^=])`)
	notEquals  = regexp.MustCompile(`<>`)
)

// Clause is a compiled attribute predicate.
type Clause struct {
	raw  string
	expr *govaluate.EvaluableExpression
}

// Compile hands a clause string to the expression engine.
func Compile(clause string) (*Clause, error) {
	normalized := notEquals.ReplaceAllString(clause, "!=")
	normalized = bareEquals.ReplaceAllString(normalized, "$1==$2")
	expr, err := govaluate.NewEvaluableExpression(normalized)
	if err != nil {
		return nil, &InvalidClauseError{Clause: clause, Reason: err.Error()}
	}
	return &Clause{raw: clause, expr: expr}, nil
}

// String returns the clause as originally supplied.
func (c *Clause) String() string { return c.raw }

// Eval tests one feature's attribute set. Attribute values referenced by the
// clause but absent from the set evaluate as nil, which the engine treats
// like SQL NULL for equality tests.
func (c *Clause) Eval(attrs map[string]any) (bool, error) {
	params := make(map[string]any, len(attrs))
	for k, v := range attrs {
		params[k] = normalizeValue(v)
	}
	result, err := c.expr.Evaluate(params)
	if err != nil {
		return false, &InvalidClauseError{Clause: c.raw, Reason: err.Error()}
	}
	b, ok := result.(bool)
	if !ok {
		return false, &InvalidClauseError{Clause: c.raw, Reason: fmt.Sprintf("clause evaluates to %T, want boolean", result)}
	}
	return b, nil
}

// normalizeValue widens numeric attribute values so integer-typed fields
// compare cleanly against numeric literals, which the engine parses as
// float64.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}
