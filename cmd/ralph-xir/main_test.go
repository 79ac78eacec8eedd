package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// resetFlags restores every package-level flag variable to its default
func resetFlags() {
	dXir = false
	outputFormat = formatText
	jobs = 0
	watch = false
	verbose = false
	configPath = ""
}

const addSrc = `version: 1.0.0
members:
  - path: "::add"
    function:
      sig: {ret: i32, params: [i32, i32]}
      body:
        - local: 0
        - as_rvalue
        - local: 1
        - as_rvalue
        - add: unchecked
        - exit: {blk: 0, values: 1}
`

const badSrc = `members:
  - path: "::ok"
    static: {type: i32, init: {int: i32, value: 1}}
  - path: "::f"
    function:
      sig: {ret: i32}
      body:
        - const: {int: i8, value: 1}
        - exit: {blk: 0, values: 1}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func execute(args ...string) (string, string, error) {
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	expectedFlags := []string{"dxir", "format", "jobs", "watch", "verbose", "config"}
	for _, flagName := range expectedFlags {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
	for _, short := range []string{"j", "w", "v"} {
		if cmd.Flags().ShorthandLookup(short) == nil {
			t.Errorf("expected flag -%s to exist", short)
		}
	}
}

func TestNormalizeFlags(t *testing.T) {
	got := normalizeFlags([]string{"-dxir", "file.yaml", "-v", "--dxir", "-j"})
	want := []string{"--dxir", "file.yaml", "-v", "--dxir", "-j"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNoArgsPrintsHelp(t *testing.T) {
	out, _, err := execute()
	if err != nil {
		t.Fatalf("expected no error without arguments, got %v", err)
	}
	if !strings.Contains(out, "ralph-xir validates") {
		t.Errorf("expected help text, got %q", out)
	}
}

func TestTooManyArgs(t *testing.T) {
	if _, _, err := execute("a.yaml", "b.yaml"); err == nil {
		t.Error("expected an error for two files")
	}
}

func TestValidFile(t *testing.T) {
	file := writeFile(t, "add.yaml", addSrc)
	out, errOut, err := execute(file)
	if err != nil {
		t.Fatalf("expected no error, got %v (stderr %q)", err, errOut)
	}
	if out != "" {
		t.Errorf("expected no stdout without --dxir, got %q", out)
	}
	if !strings.Contains(errOut, "1 members checked, 0 failed") {
		t.Errorf("expected summary line, got %q", errOut)
	}
}

func TestInvalidFile(t *testing.T) {
	file := writeFile(t, "bad.yaml", badSrc)
	_, errOut, err := execute(file)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(errOut, "function ::f: TYPE_MISMATCH") {
		t.Errorf("expected failure line for ::f, got %q", errOut)
	}
	if strings.Contains(errOut, "::ok:") {
		t.Errorf("valid member should not be reported, got %q", errOut)
	}
	if !strings.Contains(errOut, "2 members checked, 1 failed") {
		t.Errorf("expected summary line, got %q", errOut)
	}
}

func TestJSONOutput(t *testing.T) {
	file := writeFile(t, "bad.yaml", badSrc)
	out, _, err := execute("--format", "json", file)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	var jr jsonReport
	if err := json.Unmarshal([]byte(out), &jr); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if jr.File != file || jr.Valid || jr.Fatal != nil {
		t.Errorf("unexpected report header: %+v", jr)
	}
	if len(jr.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(jr.Members))
	}
	if jr.Members[0].Path != "::ok" || jr.Members[0].Kind != "static" || jr.Members[0].Error != nil {
		t.Errorf("unexpected first member: %+v", jr.Members[0])
	}
	e := jr.Members[1].Error
	if e == nil {
		t.Fatal("expected an error for ::f")
	}
	if e.Code != "TYPE_MISMATCH" || e.Function != "::f" || e.Location != "" {
		t.Errorf("unexpected error: %+v", e)
	}
	if e.Expected != "i32" || e.Actual != "i8" {
		t.Errorf("expected i32 vs i8, got %q vs %q", e.Expected, e.Actual)
	}
	if jr.IR != "" {
		t.Error("IR should be omitted without --dxir")
	}
}

func TestDXirFlag(t *testing.T) {
	file := writeFile(t, "add.yaml", addSrc)
	out, _, err := execute("--dxir", file)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "function ::add: fn(i32, i32) -> i32 {") {
		t.Errorf("expected function header, got %q", out)
	}
	if !strings.Contains(out, "4: add") {
		t.Errorf("expected numbered items, got %q", out)
	}
}

func TestDXirFlagJSON(t *testing.T) {
	file := writeFile(t, "add.yaml", addSrc)
	out, _, err := execute("--dxir", "--format", "json", file)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var jr jsonReport
	if err := json.Unmarshal([]byte(out), &jr); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !jr.Valid || !strings.Contains(jr.IR, "version 1.0.0") {
		t.Errorf("expected valid report with IR, got %+v", jr)
	}
}

func TestDecodeFailure(t *testing.T) {
	file := writeFile(t, "broken.yaml", "members:\n  - path: \"::f\"\n    fucntion: {}\n")

	_, errOut, err := execute(file)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(errOut, "line 3") {
		t.Errorf("expected line number, got %q", errOut)
	}

	out, _, err := execute("--format", "json", file)
	if err == nil {
		t.Fatal("expected an error")
	}
	var jr jsonReport
	if err := json.Unmarshal([]byte(out), &jr); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if jr.Fatal == nil || jr.Fatal.Code != codeDecode {
		t.Errorf("expected fatal %s, got %+v", codeDecode, jr.Fatal)
	}
	if jr.Members == nil || len(jr.Members) != 0 {
		t.Errorf("expected empty members list, got %v", jr.Members)
	}
}

func TestFatalValidationError(t *testing.T) {
	file := writeFile(t, "dup.yaml", "members:\n  - path: \"::x\"\n    static: {type: i32}\n  - path: \"::x\"\n    static: {type: i32}\n")
	out, _, err := execute("--format", "json", file)
	if err == nil || errors.Is(err, ErrInvalid) {
		t.Fatalf("expected a fatal error, got %v", err)
	}
	var jr jsonReport
	if err := json.Unmarshal([]byte(out), &jr); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if jr.Fatal == nil || jr.Fatal.Code != "MALFORMED" {
		t.Errorf("expected fatal MALFORMED, got %+v", jr.Fatal)
	}
}

func TestMissingFile(t *testing.T) {
	_, errOut, err := execute(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
	if !strings.Contains(errOut, "nope.yaml") {
		t.Errorf("expected file name in output, got %q", errOut)
	}
}

func TestBadFormatFlag(t *testing.T) {
	file := writeFile(t, "add.yaml", addSrc)
	_, errOut, err := execute("--format", "xml", file)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(errOut, `unknown format "xml"`) {
		t.Errorf("expected format error, got %q", errOut)
	}
}

func TestVerboseLogsMembers(t *testing.T) {
	file := writeFile(t, "add.yaml", addSrc)
	_, errOut, err := execute("-v", file)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(errOut, "checking function") {
		t.Errorf("expected debug log, got %q", errOut)
	}

	_, errOut, _ = execute(file)
	if strings.Contains(errOut, "checking function") {
		t.Errorf("debug log without -v: %q", errOut)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "cfg.yaml", "format: json\njobs: 4\nverbose: true\ndump_ir: true\n")
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Config{Format: formatJSON, Jobs: 4, Verbose: true, DumpIR: true}
	if cfg != want {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	unknown := writeFile(t, "cfg.yaml", "format: json\nthreads: 4\n")
	if _, err := loadConfig(unknown); err == nil || !strings.Contains(err.Error(), "threads") {
		t.Errorf("expected unknown key error, got %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := loadConfig(missing); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error for explicit config, got %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	// no .ralph-xir.yaml in the package directory
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != defaultConfig() {
		t.Errorf("got %+v, want defaults", cfg)
	}

	empty := writeFile(t, "empty.yaml", "")
	cfg, err = loadConfig(empty)
	if err != nil {
		t.Fatalf("empty config should load, got %v", err)
	}
	if cfg != defaultConfig() {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestConfigCheck(t *testing.T) {
	testCases := []struct {
		cfg   Config
		valid bool
	}{
		{Config{Format: formatText}, true},
		{Config{Format: formatJSON, Jobs: 8}, true},
		{Config{Format: ""}, false},
		{Config{Format: "yaml"}, false},
		{Config{Format: formatText, Jobs: -1}, false},
	}
	for _, tc := range testCases {
		err := tc.cfg.check()
		if tc.valid && err != nil {
			t.Errorf("%+v: unexpected error %v", tc.cfg, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("%+v: expected an error", tc.cfg)
		}
	}
}

func TestConfigFileAndFlagOverride(t *testing.T) {
	file := writeFile(t, "add.yaml", addSrc)
	cfgPath := writeFile(t, "cfg.yaml", "format: json\n")

	out, _, err := execute("--config", cfgPath, file)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("config should select JSON output, got %q", out)
	}

	out, errOut, err := execute("--config", cfgPath, "--format", "text", file)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "" || !strings.Contains(errOut, "members checked") {
		t.Errorf("flag should override config, got stdout %q stderr %q", out, errOut)
	}
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.yaml")

	testCases := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: target, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: target, Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: target, Op: fsnotify.Rename}, true},
		{fsnotify.Event{Name: target, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: target, Op: fsnotify.Remove}, false},
		{fsnotify.Event{Name: filepath.Join(dir, "b.yaml"), Op: fsnotify.Write}, false},
	}
	for _, tc := range testCases {
		if got := relevant(tc.ev, target); got != tc.want {
			t.Errorf("%v: got %v, want %v", tc.ev, got, tc.want)
		}
	}
}

func TestWatchFile(t *testing.T) {
	file := writeFile(t, "add.yaml", addSrc)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	changed := make(chan struct{}, 8)
	check := func() error {
		if calls.Add(1) > 1 {
			changed <- struct{}{}
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- watchFile(ctx, file, check, logger) }()

	// wait for the initial check so the watcher is registered
	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("initial check did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := os.WriteFile(file, []byte(addSrc+"\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("change was not noticed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watchFile returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchFile did not stop on cancel")
	}
}

func TestWatchFile_CancelledContext(t *testing.T) {
	file := writeFile(t, "add.yaml", addSrc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := watchFile(ctx, file, func() error { calls++; return nil }, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one check, got %d", calls)
	}
}
