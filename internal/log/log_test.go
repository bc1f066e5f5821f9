package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/felixgeelhaar/planmerge/internal/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if got := ParseFormat("text"); got != FormatText {
		t.Errorf("ParseFormat(text) = %v, want FormatText", got)
	}
	if got := ParseFormat("unknown"); got != FormatJSON {
		t.Errorf("ParseFormat(unknown) = %v, want FormatJSON", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.Level != LevelInfo {
		t.Errorf("DefaultConfig.Level = %v, want LevelInfo", config.Level)
	}
	if config.ServiceName != "planmerge" {
		t.Errorf("DefaultConfig.ServiceName = %q, want %q", config.ServiceName, "planmerge")
	}
}

func TestJSONLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: NewOutput(&buf),
	})

	logger.Info("consolidation complete", "added", 3, "merged", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "consolidation complete" {
		t.Errorf("expected msg field, got: %v", entry["msg"])
	}
	if entry["added"] != float64(3) {
		t.Errorf("expected added=3, got: %v", entry["added"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  LevelWarn,
		Format: FormatText,
		Output: NewOutput(&buf),
	})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("debug/info output leaked through warn filter: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn output missing: %s", out)
	}
}

func TestWithPhase(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: NewOutput(&buf),
	})

	logger.WithPhase(4).Info("phase started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["phase_id"] != float64(4) {
		t.Errorf("expected phase_id=4, got: %v", entry["phase_id"])
	}
}

func TestWithErrorCodedError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: NewOutput(&buf),
	})

	err := errors.New(errors.ErrCodeBudgetDenied, "budget denied").
		WithSuggestion("raise the limit")
	logger.WithError(err).Error("phase blocked")

	out := buf.String()
	if !strings.Contains(out, "BUDGET-001") {
		t.Errorf("expected error code in output: %s", out)
	}
	if !strings.Contains(out, "raise the limit") {
		t.Errorf("expected suggestion in output: %s", out)
	}
}

func TestLogErrorNil(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: NewOutput(&buf),
	})

	logger.LogError(nil)
	if buf.Len() != 0 {
		t.Errorf("LogError(nil) should log nothing, got: %s", buf.String())
	}
}

func TestDefaultLogger(t *testing.T) {
	original := DefaultLogger()
	if original == nil {
		t.Fatal("DefaultLogger should never return nil")
	}

	custom := Development()
	SetDefaultLogger(custom)
	defer SetDefaultLogger(original)

	if DefaultLogger() != custom {
		t.Error("SetDefaultLogger should replace the process-wide logger")
	}
}
