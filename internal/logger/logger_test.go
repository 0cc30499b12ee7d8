package logger

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

type stubConfig struct {
	level, output, file string
}

func (s stubConfig) GetLevel() string  { return s.level }
func (s stubConfig) GetOutput() string { return s.output }
func (s stubConfig) GetFile() string   { return s.file }

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFormatsAndFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(zapcore.WarnLevel, zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Info("hidden %d", 1)
	l.Warn("deploy failed for task %s", "t1")
	l.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered: %s", out)
	}
	if !strings.Contains(out, "deploy failed for task t1") {
		t.Fatalf("warn message missing: %s", out)
	}
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("expected capital level encoding: %s", out)
	}
}

func TestInitRejectsBadOutput(t *testing.T) {
	if err := Init(stubConfig{level: "info", output: "syslog"}); err == nil {
		t.Fatal("expected error for unsupported output")
	}
	if err := Init(stubConfig{level: "info", output: "file"}); err == nil {
		t.Fatal("expected error for file output without path")
	}
}

func TestInitWithFileOutput(t *testing.T) {
	path := t.TempDir() + "/app.log"
	if err := Init(stubConfig{level: "debug", output: "file", file: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = Init(stubConfig{level: "info", output: "stdout"}) })

	Info("written to %s", "file")
	Sync()
}
