package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediawatch/internal/config"
	"mediawatch/internal/logging"
	"mediawatch/internal/services"
)

func TestNewFromConfigWritesDailyLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, file, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	defer file.Close()
	logger.Info("file message", logging.String("k", "v"))

	content, err := os.ReadFile(file.Path())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"file message"`) {
		t.Fatalf("expected message in log file, got %q", content)
	}
	if filepath.Base(file.Path()) != logging.DailyLogName(time.Now()) {
		t.Fatalf("unexpected log file name %s", file.Path())
	}
}

func TestDailyFileRotatesAtMidnight(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	file, err := logging.OpenDailyFile(dir, logging.WithFileClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("OpenDailyFile: %v", err)
	}
	if _, err := file.Write([]byte("first\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := file.Write([]byte("second\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := file.Write([]byte("late\n")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected os.ErrClosed after Close, got %v", err)
	}

	for name, want := range map[string]string{
		"mediawatch-2024-06-01.log": "first\n",
		"mediawatch-2024-06-02.log": "second\n",
	} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(content) != want {
			t.Fatalf("%s = %q, want %q", name, content, want)
		}
	}
}

func TestPruneLogsRemovesFilesPastRetention(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 6, 20, 8, 0, 0, 0, time.UTC)
	names := []string{
		"mediawatch-2024-06-01.log", // 19 days old
		"mediawatch-2024-06-05.log", // 15 days old
		"mediawatch-2024-06-06.log", // exactly at the cutoff
		"mediawatch-2024-06-20.log",
		"notes.log",
		"mediawatch-latest.log",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	if removed := logging.PruneLogs(logging.NewNop(), dir, 14, now); removed != 2 {
		t.Fatalf("expected 2 files removed, got %d", removed)
	}
	for _, name := range names[2:] {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s should remain: %v", name, err)
		}
	}
	for _, name := range names[:2] {
		if _, err := os.Stat(filepath.Join(dir, name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s should be removed, stat err %v", name, err)
		}
	}

	if removed := logging.PruneLogs(nil, dir, 0, now.AddDate(1, 0, 0)); removed != 0 {
		t.Fatalf("retention 0 must keep everything, removed %d", removed)
	}
}

func TestConsoleLoggerLiftsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Stdout: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "pipeline").Info("run finished", logging.Int("accepted", 3))

	line := buf.String()
	if !strings.Contains(line, "INFO pipeline: run finished") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "accepted=3") {
		t.Fatalf("expected attribute, got %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not repeat as attribute, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Stdout: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")
	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected caller information, got %q", buf.String())
	}
}

func TestJSONLoggerRenamesTimeAndLowercasesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Stdout: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("careful")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Format: "console", Stdout: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "run-7")
	ctx = services.WithSubjectID(ctx, "subj-1")
	logging.WithContext(ctx, base).Info("hello")

	for _, want := range []string{"run_id=run-7", "subject_id=subj-1"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in %q", want, buf.String())
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Format: "console", Stdout: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(base, "notifier failed", "notify_failed", logging.String(logging.FieldImpact, "digest not delivered"))

	out := buf.String()
	for _, want := range []string{"event_type=notify_failed", `error_hint="check logs for details"`, `impact="digest not delivered"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}
