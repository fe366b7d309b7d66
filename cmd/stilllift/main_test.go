package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stilllift/pkg/content"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	tempConfig := `
server:
    address: localhost:0
log:
    server:
        path: "` + filepath.ToSlash(filepath.Join(dir, "logs/server.log")) + `"
        level: "debug"
    requests:
        path: "` + filepath.ToSlash(filepath.Join(dir, "logs/requests.log")) + `"
    narration:
        path: "` + filepath.ToSlash(filepath.Join(dir, "logs/narration.log")) + `"
    tts:
        path: "` + filepath.ToSlash(filepath.Join(dir, "logs/tts.log")) + `"
db:
    path: "` + filepath.ToSlash(filepath.Join(dir, "data/test.db")) + `"
assets:
    dir: "` + filepath.ToSlash(filepath.Join(dir, "audio")) + `"
    preload: false
audio:
    output: "null"
`
	cfgPath := filepath.Join(dir, "stilllift.yaml")
	if err := os.WriteFile(cfgPath, []byte(tempConfig), 0o644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	// Cancel quickly to verify the startup sequence
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
}

func TestPick_NeverRepeatsConsecutively(t *testing.T) {
	out, err := execute(t, "pick", "--mood", "bad", "--context", "move", "-n", "10")
	if err != nil {
		t.Fatalf("pick failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 lines, got %d:\n%s", len(lines), out)
	}
	for i := 1; i < len(lines); i++ {
		prev := lines[i-1][strings.Index(lines[i-1], "["):]
		cur := lines[i][strings.Index(lines[i], "["):]
		if prev == cur {
			t.Errorf("line %d repeats the previous selection: %s", i+1, cur)
		}
	}
}

func TestPick_RejectsUnknownMood(t *testing.T) {
	if _, err := execute(t, "pick", "--mood", "elated", "--context", "move"); !errors.Is(err, content.ErrUnknownMood) {
		t.Errorf("expected ErrUnknownMood, got %v", err)
	}
}

func TestCandidates(t *testing.T) {
	out, err := execute(t, "candidates", "--mood", "okay", "--context", "focused", "--index", "2")
	if err != nil {
		t.Fatalf("candidates failed: %v", err)
	}
	first := strings.Index(out, "/still-lift-audio/okay-focused/Mood_Okay_Content_Focused_Audio_02.mp3")
	fallback := strings.Index(out, "/still-lift-audio/okay-focused/Mood_Okay_Content_Focused_Audio_01.mp3")
	if first < 0 || fallback < 0 || fallback < first {
		t.Errorf("expected index 2 before the index 1 fallback:\n%s", out)
	}

	if _, err := execute(t, "candidates"); err == nil {
		t.Error("expected an error without any selector")
	}
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate")
	if err != nil {
		t.Fatalf("built-in library should validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Library is valid") {
		t.Errorf("unexpected output: %s", out)
	}

	bad := filepath.Join(t.TempDir(), "lib.yaml")
	doc := "good:\n  still:\n    - action_type: DANCE\n      message: Spin around.\n      display_time: 5\n      audio_index: 1\n"
	if err := os.WriteFile(bad, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "validate", "--library", bad)
	if !errors.Is(err, errInvalidLibrary) {
		t.Fatalf("expected invalid library, got %v", err)
	}
	if !strings.Contains(out, "Problem") {
		t.Errorf("expected a problem table, got: %s", out)
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "stilllift.yaml")
	if _, err := execute(t, "init-config", "--config", path); err != nil {
		t.Fatalf("init-config failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "tts_fallback: false") {
		t.Errorf("expected fallback to default off:\n%s", data)
	}
}
