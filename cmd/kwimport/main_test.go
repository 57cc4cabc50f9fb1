package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/kwimport/internal/core"
	"github.com/JonMunkholm/kwimport/internal/store"
)

const ahrefsCSV = "Keyword,Volume,KD,Parent Topic,Country\n" +
	"running shoes,2000,50,shoes,us\n" +
	"trail running shoes,400,35,shoes,us\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func TestTools(t *testing.T) {
	out, err := execute(t, "tools")
	if err != nil {
		t.Fatalf("tools error = %v", err)
	}
	var tools []core.ToolSchema
	if err := json.Unmarshal([]byte(out), &tools); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(tools) != 3 {
		t.Errorf("tools = %d, want 3", len(tools))
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv", ahrefsCSV)

	out, err := execute(t, "detect", path)
	if err != nil {
		t.Fatalf("detect error = %v", err)
	}
	var preview core.FormatPreview
	if err := json.Unmarshal([]byte(out), &preview); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if preview.Mapping.DetectedTool != core.ToolAhrefs {
		t.Errorf("DetectedTool = %q, want ahrefs", preview.Mapping.DetectedTool)
	}

	if _, err := execute(t, "detect", filepath.Join(dir, "missing.csv")); exitCode(err) != exitUsage {
		t.Errorf("missing file exit code = %d, want %d", exitCode(err), exitUsage)
	}
	if _, err := execute(t, "detect"); err == nil {
		t.Error("detect without a file should fail")
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "opts.yaml", `
project_id: p1
list_id: l1
tool: ahrefs
project_region: US
conflict_resolution_strategy: use_imported
auto_resolve_conflicts: true
column_mapping:
  Term: keyword
`)
	opts, err := loadOptions(path)
	if err != nil {
		t.Fatalf("loadOptions() error = %v", err)
	}
	if opts.ProjectID != "p1" || opts.ListID != "l1" || opts.Tool != core.ToolAhrefs {
		t.Errorf("ids = %+v", opts)
	}
	if opts.ProjectRegion != "US" || opts.Strategy != core.StrategyUseImported || !opts.AutoResolveConflicts {
		t.Errorf("merge options = %+v", opts.MergeOptions)
	}
	if opts.ColumnMapping["Term"] != "keyword" {
		t.Errorf("ColumnMapping = %v", opts.ColumnMapping)
	}

	bad := writeFile(t, dir, "bad.yaml", "project_id: [")
	if _, err := loadOptions(bad); !errors.Is(err, core.ErrInvalidOptions) {
		t.Errorf("loadOptions(bad) error = %v, want ErrInvalidOptions", err)
	}
	if opts, err := loadOptions(""); err != nil || opts.ProjectID != "" {
		t.Errorf("loadOptions(\"\") = %+v, %v", opts, err)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "kw.db")
	path := writeFile(t, dir, "export.csv", ahrefsCSV)

	out, err := execute(t, "run", path, "--db", db, "--project", "p1", "--create-list", "Shoes", "--region", "US")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	var report core.ImportReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if report.Summary.TotalNew != 2 || report.DetectedTool != core.ToolAhrefs {
		t.Errorf("report = %+v", report.Summary)
	}

	// A second run matches everything it inserted the first time.
	opts := writeFile(t, dir, "opts.yaml", "project_id: p1\nlist_id: ignored\nconflict_resolution_strategy: use_imported\nauto_resolve_conflicts: true\n")
	out, err = execute(t, "run", path, "--db", db, "--options", opts, "--create-list", "Shoes again")
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	report = core.ImportReport{}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatal(err)
	}
	if report.Summary.TotalMatched != 2 || report.Summary.TotalNew != 0 {
		t.Errorf("second run summary = %+v, want 2 matched", report.Summary)
	}

	s, err := store.OpenSQLite(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	existing, err := s.ListExistingKeywords(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(existing) != 2 {
		t.Errorf("stored keywords = %d, want 2", len(existing))
	}
}

func TestRun_Usage(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv", ahrefsCSV)
	db := filepath.Join(dir, "kw.db")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing ids", []string{"run", path, "--db", db}, exitUsage},
		{"create list without project", []string{"run", path, "--db", db, "--create-list", "x"}, exitUsage},
		{"bad strategy", []string{"run", path, "--db", db, "--project", "p", "--list", "l", "--strategy", "coin"}, exitUsage},
		{"unknown list", []string{"run", path, "--db", db, "--project", "p", "--list", "nope"}, exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := exitCode(err); got != tt.want {
				t.Errorf("exit code = %d, want %d (%v)", got, tt.want, err)
			}
		})
	}
}
