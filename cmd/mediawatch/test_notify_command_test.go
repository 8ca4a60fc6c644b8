package main

import "testing"

func TestTestNotifyWithoutNotifiers(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "No notifier configured")
}

func TestTestNotifySendsPush(t *testing.T) {
	env := setupCLITestEnv(t, "\n[ntfy]\ntopic = \"{{ntfy}}\"\n")
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if hits := env.ntfyHits.Load(); hits != 1 {
		t.Fatalf("expected one push, got %d", hits)
	}
}
