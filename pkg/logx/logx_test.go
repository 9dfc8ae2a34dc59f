package logx_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Abraxas-365/chatkeep/pkg/logx"
)

func newJSONLogger(buf *bytes.Buffer, level logx.Level) *logx.Logger {
	cfg := logx.DefaultConfig()
	cfg.Format = logx.FormatJSON
	cfg.Level = level
	cfg.EnableTimestamp = false
	cfg.Output = buf
	return logx.NewLogger(cfg)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_FieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, logx.LevelDebug)

	l.WithFields(logx.Fields{"identity": "u1", "evicted": 2}).
		WithError(errors.New("boom")).
		Warn("sweep finished")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	got := lines[0]
	if got["level"] != "warn" || got["message"] != "sweep finished" {
		t.Fatalf("unexpected entry: %v", got)
	}
	if got["identity"] != "u1" || got["error"] != "boom" {
		t.Fatalf("missing fields: %v", got)
	}
}

func TestLogger_CallerPointsAtCallSite(t *testing.T) {
	var buf bytes.Buffer
	cfg := logx.DefaultConfig()
	cfg.Format = logx.FormatJSON
	cfg.EnableTimestamp = false
	cfg.EnableCaller = true
	cfg.Output = &buf
	l := logx.NewLogger(cfg)

	l.WithField("identity", "u1").Warn("evicted")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	caller, _ := lines[0]["caller"].(string)
	if !strings.Contains(caller, "logx_test.go") {
		t.Fatalf("caller should be the test file, got %q", caller)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, logx.LevelWarn)

	l.WithField("k", "v").Info("dropped")
	l.WithField("k", "v").Error("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["message"] != "kept" {
		t.Fatalf("expected only the error line, got %v", lines)
	}

	l.SetLevel(logx.LevelInfo)
	l.WithField("k", "v").Info("now kept")
	if n := len(decodeLines(t, &buf)); n != 2 {
		t.Fatalf("expected 2 lines after SetLevel, got %d", n)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]logx.Level{
		"debug":    logx.LevelDebug,
		"WARNING":  logx.LevelWarn,
		" error ":  logx.LevelError,
		"off":      logx.LevelOff,
		"nonsense": logx.LevelInfo,
	}
	for in, want := range cases {
		if got := logx.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, logx.LevelDebug)

	cl := l.CronLogger()
	cl.Info("wake", "now", "t0")
	cl.Error(errors.New("panic"), "job failed", "entry", 1)

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["level"] != "debug" || lines[0]["now"] != "t0" {
		t.Fatalf("unexpected info line: %v", lines[0])
	}
	if lines[1]["level"] != "error" || lines[1]["error"] != "panic" {
		t.Fatalf("unexpected error line: %v", lines[1])
	}
}
