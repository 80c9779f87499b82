package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// mockLogger implements Logger for testing.
type mockLogger struct {
	debugCalls []string
	warnCalls  []string
}

func (m *mockLogger) Debug(msg string, keysAndValues ...any) {
	m.debugCalls = append(m.debugCalls, msg)
}

func (m *mockLogger) Warn(msg string, keysAndValues ...any) {
	m.warnCalls = append(m.warnCalls, msg)
}

func createFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()

	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	tmpDir := t.TempDir()

	// tmpDir/
	//   -home-dev-api/
	//     s1.jsonl
	//     s2.jsonl
	//     notes.txt (ignored)
	//   -home-dev-web/
	//     s3.jsonl
	//   stray.jsonl (ignored, not in a project)
	createFile(t, filepath.Join(tmpDir, "-home-dev-api", "s1.jsonl"), "{}\n")
	createFile(t, filepath.Join(tmpDir, "-home-dev-api", "s2.jsonl"), "{}\n")
	createFile(t, filepath.Join(tmpDir, "-home-dev-api", "notes.txt"), "x")
	createFile(t, filepath.Join(tmpDir, "-home-dev-web", "s3.jsonl"), "{}\n")
	createFile(t, filepath.Join(tmpDir, "stray.jsonl"), "{}\n")

	d := New([]string{tmpDir, filepath.Join(tmpDir, "missing")}, &mockLogger{})

	files, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Discover() returned %d files, want 3", len(files))
	}

	sort.Slice(files, func(i, j int) bool { return files[i].SessionID < files[j].SessionID })
	want := []struct{ id, project string }{
		{"s1", "-home-dev-api"},
		{"s2", "-home-dev-api"},
		{"s3", "-home-dev-web"},
	}
	for i, w := range want {
		if files[i].SessionID != w.id || files[i].Project != w.project {
			t.Errorf("files[%d] = %s/%s, want %s/%s", i, files[i].Project, files[i].SessionID, w.project, w.id)
		}
		if files[i].Size != 3 {
			t.Errorf("files[%d].Size = %d, want 3", i, files[i].Size)
		}
	}
}

func TestModifiedSince(t *testing.T) {
	tmpDir := t.TempDir()
	now := time.Now()

	recent := filepath.Join(tmpDir, "proj", "recent.jsonl")
	old := filepath.Join(tmpDir, "proj", "old.jsonl")
	createFile(t, recent, "{}\n")
	createFile(t, old, "{}\n")
	touch(t, recent, now.Add(-time.Hour))
	touch(t, old, now.AddDate(0, 0, -40))

	d := New([]string{tmpDir}, &mockLogger{})

	files, err := d.ModifiedSince(context.Background(), now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("ModifiedSince() error = %v", err)
	}
	if len(files) != 1 || files[0].SessionID != "recent" {
		t.Errorf("ModifiedSince() = %+v, want only recent", files)
	}
}

func TestModifiedSinceCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	createFile(t, filepath.Join(tmpDir, "proj", "s.jsonl"), "{}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New([]string{tmpDir}, &mockLogger{})
	if _, err := d.ModifiedSince(ctx, time.Time{}); !errors.Is(err, context.Canceled) {
		t.Errorf("ModifiedSince() error = %v, want context.Canceled", err)
	}
}

func TestDiscoverProject(t *testing.T) {
	tmpDir := t.TempDir()
	project := filepath.Join(tmpDir, "proj")
	createFile(t, filepath.Join(project, "a.jsonl"), "{}\n")
	createFile(t, filepath.Join(project, "b.jsonl"), "{}\n")

	d := New(nil, &mockLogger{})

	files, err := d.DiscoverProject(project)
	if err != nil {
		t.Fatalf("DiscoverProject() error = %v", err)
	}
	if len(files) != 2 {
		t.Errorf("DiscoverProject() returned %d files, want 2", len(files))
	}
}

func TestDiscoverProjectNotFound(t *testing.T) {
	d := New(nil, &mockLogger{})

	_, err := d.DiscoverProject(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("DiscoverProject() error = %v, want ErrProjectNotFound", err)
	}
}

func TestRoots(t *testing.T) {
	existing := t.TempDir()
	file := filepath.Join(existing, "file")
	createFile(t, file, "")

	d := New([]string{existing, filepath.Join(existing, "missing"), file}, &mockLogger{})

	roots := d.Roots()
	if len(roots) != 1 || roots[0] != existing {
		t.Errorf("Roots() = %v, want [%s]", roots, existing)
	}
}

func TestExpandHome(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot get home directory")
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "tilde only", path: "~", want: homeDir},
		{name: "tilde with path", path: "~/.claude/projects", want: filepath.Join(homeDir, ".claude", "projects")},
		{name: "absolute path", path: "/absolute/path", want: "/absolute/path"},
		{name: "relative path", path: "relative/path", want: "relative/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandHome(tt.path); got != tt.want {
				t.Errorf("expandHome(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func BenchmarkDiscover(b *testing.B) {
	tmpDir := b.TempDir()
	for p := 0; p < 10; p++ {
		dir := filepath.Join(tmpDir, "proj"+string(rune('a'+p)))
		if err := os.MkdirAll(dir, 0700); err != nil {
			b.Fatal(err)
		}
		for s := 0; s < 10; s++ {
			path := filepath.Join(dir, "s"+string(rune('a'+s))+".jsonl")
			if err := os.WriteFile(path, []byte("{}\n"), 0600); err != nil {
				b.Fatal(err)
			}
		}
	}

	d := New([]string{tmpDir}, &mockLogger{})
	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = d.Discover(ctx)
	}
}
