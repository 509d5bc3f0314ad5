package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/newsroom/internal/model"
)

type mockSink struct {
	createManyFn func(ctx context.Context, sources []model.NewSource) (int, error)
}

func (m *mockSink) CreateMany(ctx context.Context, sources []model.NewSource) (int, error) {
	if m.createManyFn != nil {
		return m.createManyFn(ctx, sources)
	}
	return len(sources), nil
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestParse_AppliesDefaults(t *testing.T) {
	raw := []byte(`
sources:
  - name: "  Example News "
    url: https://example.com/rss.xml
  - name: Paused
    url: https://paused.example.com/atom.xml
    type: atom
    active: false
`)

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []model.NewSource{
		{Name: "Example News", URL: "https://example.com/rss.xml", Type: "rss", IsActive: true},
		{Name: "Paused", URL: "https://paused.example.com/atom.xml", Type: "atom", IsActive: false},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sources[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"missing_name", "sources:\n  - url: https://a.example.com/rss\n", "name is required"},
		{"missing_url", "sources:\n  - name: A\n", "url is required"},
		{"relative_url", "sources:\n  - name: A\n    url: /rss.xml\n", "absolute http(s) URL"},
		{"bad_yaml", "sources: [", "decode seed yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_EmptyFile(t *testing.T) {
	got, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}

	if _, err := LoadFile("  "); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestApply_RegistersThroughSink(t *testing.T) {
	path := writeSeedFile(t, `
sources:
  - name: A
    url: https://a.example.com/rss
  - name: B
    url: https://b.example.com/rss
`)

	var received []model.NewSource
	sink := &mockSink{
		createManyFn: func(ctx context.Context, sources []model.NewSource) (int, error) {
			received = sources
			return 1, nil
		},
	}

	created, err := Apply(context.Background(), sink, path)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
	if len(received) != 2 {
		t.Errorf("sink received %d sources, want 2", len(received))
	}
}

func TestApply_SinkError(t *testing.T) {
	path := writeSeedFile(t, "sources:\n  - name: A\n    url: https://a.example.com/rss\n")
	sink := &mockSink{
		createManyFn: func(ctx context.Context, sources []model.NewSource) (int, error) {
			return 0, errors.New("db down")
		},
	}

	if _, err := Apply(context.Background(), sink, path); err == nil {
		t.Fatal("expected error")
	}
}

func TestApply_EmptySeedSkipsSink(t *testing.T) {
	path := writeSeedFile(t, "sources: []\n")
	sink := &mockSink{
		createManyFn: func(ctx context.Context, sources []model.NewSource) (int, error) {
			t.Error("CreateMany should not be called")
			return 0, nil
		},
	}

	created, err := Apply(context.Background(), sink, path)
	if err != nil || created != 0 {
		t.Errorf("Apply() = %d, %v; want 0, nil", created, err)
	}
}

func TestLoadFile_BundledSeeds(t *testing.T) {
	sources, err := LoadFile(filepath.Join("..", "..", "seeds", "sources.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(sources) == 0 {
		t.Fatal("bundled seed file should define at least one source")
	}
	for _, s := range sources {
		if s.Type == "" {
			t.Errorf("source %q has empty type", s.Name)
		}
	}
}
