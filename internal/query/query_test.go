package query

import (
	"errors"
	"testing"
)

func TestCompileNormalizesSQLOperators(t *testing.T) {
	clause, err := Compile("zone = 'R1' && height <> 3")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ok, err := clause.Eval(map[string]any{"zone": "R1", "height": 2})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !ok {
		t.Error("clause should match")
	}
	ok, err = clause.Eval(map[string]any{"zone": "R1", "height": 3})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if ok {
		t.Error("clause should not match when height == 3")
	}
}

func TestCompilePreservesComparisonOperators(t *testing.T) {
	clause, err := Compile("pop >= 100 && pop <= 200")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ok, err := clause.Eval(map[string]any{"pop": 150})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !ok {
		t.Error("clause should match pop=150")
	}
}

func TestCompileInvalid(t *testing.T) {
	_, err := Compile("zone = = 'R1'")
	if err == nil {
		t.Fatal("expected a compile error")
	}
	var invalid *InvalidClauseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidClauseError, got %T: %v", err, err)
	}
	if invalid.Clause != "zone = = 'R1'" {
		t.Errorf("error should carry the original clause, got %q", invalid.Clause)
	}
}

func TestEvalNonBoolean(t *testing.T) {
	clause, err := Compile("pop + 1")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	_, err = clause.Eval(map[string]any{"pop": 1})
	if err == nil {
		t.Fatal("expected an error for a non-boolean clause")
	}
	var invalid *InvalidClauseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidClauseError, got %T: %v", err, err)
	}
}

func TestEvalIntegerWidening(t *testing.T) {
	clause, err := Compile("count = 3")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	for _, value := range []any{3, int32(3), int64(3), float64(3)} {
		ok, err := clause.Eval(map[string]any{"count": value})
		if err != nil {
			t.Fatalf("Eval(%T) failed: %v", value, err)
		}
		if !ok {
			t.Errorf("count=%T(3) should match the literal 3", value)
		}
	}
}

func TestStringKeepsOriginalClause(t *testing.T) {
	clause, err := Compile("a = 1")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if clause.String() != "a = 1" {
		t.Errorf("String() should return the raw clause, got %q", clause.String())
	}
}
