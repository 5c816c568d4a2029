package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestTestLoggerCapturesOutput(t *testing.T) {
	logger, buffer := NewTestLogger(LevelDebug)

	logger.Info("fit complete", RowsKey, 100, ColumnsKey, 5)
	out := buffer.String()
	if !strings.Contains(out, "INFO fit complete") {
		t.Errorf("missing message, got %q", out)
	}
	if !strings.Contains(out, RowsKey+"=100") {
		t.Errorf("missing rows attribute, got %q", out)
	}
}

func TestTestLoggerLevelFiltering(t *testing.T) {
	logger, buffer := NewTestLogger(LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buffer.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("low-level messages leaked: %q", out)
	}
	if !strings.Contains(out, "WARN visible") {
		t.Errorf("warn message missing: %q", out)
	}
	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
}

func TestTestLoggerWith(t *testing.T) {
	logger, buffer := NewTestLogger(LevelInfo)

	child := logger.With(RunIDKey, "abc-123")
	child.Info("stage done", StageKey, "imputed")

	out := buffer.String()
	if !strings.Contains(out, RunIDKey+"=abc-123") {
		t.Errorf("inherited field missing: %q", out)
	}
	if !strings.Contains(out, StageKey+"=imputed") {
		t.Errorf("call-site field missing: %q", out)
	}
}

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		if got := ToLogLevel(tt.in); got != tt.want {
			t.Errorf("ToLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown level")
		}
	}()
	ToLogLevel("nonsense")
}

func TestSlogProviderRoutesComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	lv := new(slog.LevelVar)
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: lv}))
	slog.SetDefault(slog.New(handler))
	SetProvider(&slogProvider{level: lv})
	defer func() {
		SetProvider(nil)
		slog.SetDefault(prev)
	}()

	logger := GetLoggerWithName("impute")
	logger.Info("fitted column estimator", ColumnKey, "humidity", MissingKey, 10)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record[ComponentKey] != "impute" {
		t.Errorf("component attribute = %v, want impute", record[ComponentKey])
	}
	if record[ColumnKey] != "humidity" {
		t.Errorf("column attribute = %v, want humidity", record[ColumnKey])
	}

	// Level changes keep working after the backend switch.
	SetLevel(LevelError)
	if GetLogger().Enabled(context.Background(), LevelInfo) {
		t.Error("info should be disabled at error level")
	}
}

func TestErrFmtHandlerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(handler)

	err := errors.New("imputation failed")
	logger.Error("operation failed", ErrAttrKey, err)

	var record map[string]any
	if jsonErr := json.Unmarshal(buf.Bytes(), &record); jsonErr != nil {
		t.Fatalf("log output is not JSON: %v", jsonErr)
	}
	if record[ErrAttrKey] == nil {
		t.Error("error attribute missing from record")
	}
	if _, ok := record[StacktraceAttrKey]; !ok {
		t.Error("stacktrace attribute missing from record")
	}
}
