package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	if err := SetFormat("json"); err != nil {
		t.Fatalf("set format: %v", err)
	}
	defer func() { _ = SetFormat("text") }()

	Named("ranking").Info(context.Background(), "ranked feed", Int("articles", 3), Error(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "ranked feed" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["component"] != "ranking" {
		t.Errorf("unexpected component: %v", rec["component"])
	}
	if rec["error"] != "boom" {
		t.Errorf("error should be rendered as string, got %v", rec["error"])
	}
	src, _ := rec["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source should point at the caller, got %q", src)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	l := Get().With(String("request_id", "abc"))
	l.Info(context.Background(), "hidden")
	l.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "request_id=abc") {
		t.Errorf("warn record missing or without fields: %q", out)
	}
}

func TestSetLevelString(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "", "warn", "warning", "error", " DEBUG "} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("level %q should be accepted: %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("unknown level should be rejected")
	}
	if err := SetFormat("xml"); err == nil {
		t.Error("unknown format should be rejected")
	}
	_ = SetLevelString("info")
}
