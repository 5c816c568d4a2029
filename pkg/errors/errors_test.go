package errors

import (
	"strings"
	"testing"
)

func TestSchemaMismatchError(t *testing.T) {
	err := NewSchemaMismatchError("CorrelationFilter.Transform",
		[]string{"no2", "so2", "pm10"}, []string{"pm10"})

	var schemaErr *SchemaMismatchError
	if !As(err, &schemaErr) {
		t.Fatalf("expected SchemaMismatchError, got %T", err)
	}
	if schemaErr.Op != "CorrelationFilter.Transform" {
		t.Errorf("Op = %q, want %q", schemaErr.Op, "CorrelationFilter.Transform")
	}
	if !strings.Contains(err.Error(), "pm10") {
		t.Errorf("error message %q should name the missing column", err.Error())
	}
}

func TestImputationIncompleteError(t *testing.T) {
	err := NewImputationIncompleteError("wind_speed", 3)

	var impErr *ImputationIncompleteError
	if !As(err, &impErr) {
		t.Fatalf("expected ImputationIncompleteError, got %T", err)
	}
	if impErr.Column != "wind_speed" || impErr.Missing != 3 {
		t.Errorf("got column=%q missing=%d", impErr.Column, impErr.Missing)
	}
}

func TestDegenerateCandidateErrorUnwrap(t *testing.T) {
	cause := New("zero usable rows")
	err := NewDegenerateCandidateError(7, 2, cause)

	var degErr *DegenerateCandidateError
	if !As(err, &degErr) {
		t.Fatalf("expected DegenerateCandidateError, got %T", err)
	}
	if !Is(err, cause) {
		t.Error("DegenerateCandidateError should unwrap to its cause")
	}
	if degErr.CandidateIndex != 7 || degErr.Fold != 2 {
		t.Errorf("got candidate=%d fold=%d", degErr.CandidateIndex, degErr.Fold)
	}
}

func TestEmptyFoldError(t *testing.T) {
	err := NewEmptyFoldError("KFold", 4)
	var foldErr *EmptyFoldError
	if !As(err, &foldErr) {
		t.Fatalf("expected EmptyFoldError, got %T", err)
	}
	if foldErr.Fold != 4 {
		t.Errorf("Fold = %d, want 4", foldErr.Fold)
	}
}

func TestNotFittedError(t *testing.T) {
	tests := []struct {
		name      string
		modelName string
		method    string
		wantSub   string
	}{
		{
			name:      "imputer not fitted",
			modelName: "Imputer",
			method:    "Transform",
			wantSub:   "Imputer",
		},
		{
			name:      "regressor not fitted",
			modelName: "GBMRegressor",
			method:    "Predict",
			wantSub:   "Predict()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewNotFittedError(tt.modelName, tt.method)
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestWarnHandler(t *testing.T) {
	var captured error
	SetWarningHandler(func(w error) { captured = w })
	defer SetWarningHandler(nil)

	w := NewDegenerateCandidateError(0, 0, nil)
	Warn(w)

	if captured == nil {
		t.Fatal("warning handler was not invoked")
	}
	if !Is(captured, w) {
		t.Errorf("captured %v, want %v", captured, w)
	}
}

func TestRecoverConvertsPanic(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "test operation")
		panic("boom")
	}

	err := fn()
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	var panicErr *PanicError
	if !As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %T", err)
	}
	if panicErr.Operation != "test operation" {
		t.Errorf("Operation = %q", panicErr.Operation)
	}
}

func TestSafeExecute(t *testing.T) {
	err := SafeExecute("division", func() error {
		var xs []int
		_ = xs[3] // out of range
		return nil
	})
	if err == nil {
		t.Fatal("expected error from panicking function")
	}
}

func TestSafeDivide(t *testing.T) {
	if got := SafeDivide(1.0, 0.0); got != 0 {
		t.Errorf("SafeDivide(1, 0) = %v, want 0", got)
	}
	if got := SafeDivide(6.0, 2.0); got != 3.0 {
		t.Errorf("SafeDivide(6, 2) = %v, want 3", got)
	}
}
