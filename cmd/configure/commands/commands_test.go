package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benvon/sitetime/internal/storage"
)

func runCmd(t *testing.T, store storage.Store, args ...string) (string, error) {
	t.Helper()
	open := func(ctx context.Context) (storage.Store, error) { return store, nil }
	root := NewRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBlockCommands(t *testing.T) {
	t.Parallel()
	store := storage.NewMemoryStore()

	out, err := runCmd(t, store, "block", "WWW.Example.com")
	if err != nil {
		t.Fatalf("block failed: %v", err)
	}
	if !strings.Contains(out, "Blocked example.com") {
		t.Errorf("unexpected block output: %q", out)
	}

	out, err = runCmd(t, store, "blocked")
	if err != nil {
		t.Fatalf("blocked failed: %v", err)
	}
	if strings.TrimSpace(out) != "example.com" {
		t.Errorf("expected blocked list with one site, got %q", out)
	}

	if _, err := runCmd(t, store, "unblock", "https://www.example.com/path"); err != nil {
		t.Fatalf("unblock failed: %v", err)
	}
	out, _ = runCmd(t, store, "blocked")
	if !strings.Contains(out, "No blocked sites") {
		t.Errorf("expected empty list, got %q", out)
	}

	if _, err := runCmd(t, store, "block", "bad host"); err == nil {
		t.Error("expected error for invalid hostname")
	}
}

func TestCategoryCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category string
		wantErr  bool
	}{
		{name: "productive", category: "productive"},
		{name: "distracting", category: "distracting"},
		{name: "neutral", category: "neutral"},
		{name: "unrecognized", category: "work", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := storage.NewMemoryStore()
			_, err := runCmd(t, store, "category", "docs.example.com", tt.category)
			if (err != nil) != tt.wantErr {
				t.Fatalf("category error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeAndSummaryCommands(t *testing.T) {
	t.Parallel()
	store := storage.NewMemoryStore()
	ctx := context.Background()
	if err := store.Accrue(ctx, "docs.example.com", "2024-03-01", 90_000); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}
	if err := store.Accrue(ctx, "video.example.com", "2024-03-01", 30_000); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}
	if _, err := runCmd(t, store, "category", "docs.example.com", "productive"); err != nil {
		t.Fatalf("category failed: %v", err)
	}
	if _, err := runCmd(t, store, "category", "video.example.com", "distracting"); err != nil {
		t.Fatalf("category failed: %v", err)
	}

	out, err := runCmd(t, store, "time", "docs.example.com", "--date", "2024-03-01")
	if err != nil {
		t.Fatalf("time failed: %v", err)
	}
	if !strings.Contains(out, "1m 30s (90000 ms)") {
		t.Errorf("unexpected time output: %q", out)
	}

	out, err = runCmd(t, store, "summary", "--date", "2024-03-01", "--sites")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	for _, want := range []string{"Summary for 2024-03-01", "Productive:  1m 30s", "Total:       2m 0s", "Score:       75%", "video.example.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCmd(t, store, "time", "docs.example.com", "--date", "03/01/2024"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestSettingsCommands(t *testing.T) {
	t.Parallel()
	store := storage.NewMemoryStore()

	if _, err := runCmd(t, store, "settings", "set"); err == nil {
		t.Error("expected error when no flags are given")
	}

	if _, err := runCmd(t, store, "settings", "set", "--goal", "6", "--incognito"); err != nil {
		t.Fatalf("settings set failed: %v", err)
	}
	settings, err := store.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if settings.DailyProductiveGoal != 6 || !settings.TrackIncognito {
		t.Errorf("settings not applied: %+v", settings)
	}
	if settings.DailyDistractingLimit != 2 {
		t.Errorf("untouched limit changed to %v", settings.DailyDistractingLimit)
	}

	if _, err := runCmd(t, store, "settings", "set", "--goal", "30"); err == nil {
		t.Error("expected validation error for goal above 24")
	}

	out, err := runCmd(t, store, "settings", "get")
	if err != nil {
		t.Fatalf("settings get failed: %v", err)
	}
	if !strings.Contains(out, "Track incognito:         true") {
		t.Errorf("unexpected settings output: %q", out)
	}
}

func TestExportImportClear(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := storage.NewMemoryStore()
	ctx := context.Background()
	if err := store.Accrue(ctx, "docs.example.com", "2024-03-01", 5_000); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}
	if _, err := runCmd(t, store, "block", "video.example.com"); err != nil {
		t.Fatalf("block failed: %v", err)
	}

	for _, format := range []string{"json", "yaml"} {
		path := filepath.Join(dir, "export."+format)
		if _, err := runCmd(t, store, "export", "--format", format, "-o", path); err != nil {
			t.Fatalf("export %s failed: %v", format, err)
		}

		target := storage.NewMemoryStore()
		if _, err := runCmd(t, target, "import", path); err != nil {
			t.Fatalf("import %s failed: %v", format, err)
		}
		ms, err := target.SiteTime(ctx, "docs.example.com", "2024-03-01")
		if err != nil || ms != 5_000 {
			t.Errorf("%s import: expected 5000 ms, got %d (err %v)", format, ms, err)
		}
		blocked, err := target.IsBlocked(ctx, "video.example.com")
		if err != nil || !blocked {
			t.Errorf("%s import: expected video.example.com blocked", format)
		}
	}

	if _, err := runCmd(t, store, "export", "--format", "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := runCmd(t, store, "import", bad); err == nil {
		t.Error("expected error for malformed snapshot")
	}

	if _, err := runCmd(t, store, "clear"); err == nil {
		t.Error("expected clear to refuse without --yes")
	}
	if _, err := runCmd(t, store, "clear", "--yes"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	ms, _ := store.SiteTime(ctx, "docs.example.com", "2024-03-01")
	if ms != 0 {
		t.Errorf("expected cleared ledger, got %d", ms)
	}
}

func TestCheckCommand(t *testing.T) {
	t.Parallel()
	out, err := runCmd(t, storage.NewMemoryStore(), "check")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, "Storage reachable") {
		t.Errorf("unexpected check output: %q", out)
	}
}
