package main

import (
	"encoding/json"
	"testing"

	"mediawatch/internal/pipeline"
)

func TestRunCommandAnnouncesOnceThenDeduplicates(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	requireContains(t, out, "Subjects: 2 processed", "Facts:    2 accepted, 0 duplicate", "dune-4k", "Dune Part Two")

	out, _, err = runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	requireContains(t, out, "0 accepted, 2 duplicate", "Nothing new")
}

func TestRunCommandJSONReport(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"run", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("run --json: %v", err)
	}
	var report pipeline.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.FactsAccepted != 2 || report.SubjectsProcessed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.CategoryCounts["teen"] != 1 || report.CategoryCounts["adult"] != 1 {
		t.Fatalf("unexpected category counts: %v", report.CategoryCounts)
	}
	if report.RunID == "" {
		t.Fatal("expected run id")
	}
}

func TestRunCommandDryRunRecordsNothing(t *testing.T) {
	env := setupCLITestEnv(t, "\n[ntfy]\ntopic = \"{{ntfy}}\"\n")

	for i := 0; i < 2; i++ {
		out, _, err := runCLI(t, []string{"run", "--dry-run"}, env.configPath)
		if err != nil {
			t.Fatalf("dry run %d: %v", i, err)
		}
		requireContains(t, out, "2 accepted", "Dry run: nothing recorded or delivered")
	}
	if hits := env.ntfyHits.Load(); hits != 0 {
		t.Fatalf("dry run delivered %d notifications", hits)
	}

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No notification records")
}

func TestRunCommandDeliversDigest(t *testing.T) {
	env := setupCLITestEnv(t, "\n[ntfy]\ntopic = \"{{ntfy}}\"\n")

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Digest delivered")
	if hits := env.ntfyHits.Load(); hits != 1 {
		t.Fatalf("expected one push, got %d", hits)
	}

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if hits := env.ntfyHits.Load(); hits != 1 {
		t.Fatalf("expected no push for an empty digest, got %d total", hits)
	}
}

func TestRunCommandFailsWhenLibraryRejectsCredentials(t *testing.T) {
	env := setupCLITestEnv(t, "")
	writeConfigReplacing(t, env.configPath, `api_key = "jf-key"`, `api_key = "wrong"`)

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected run to abort")
	}
	requireContains(t, err.Error(), "run aborted", "fatal")
}
