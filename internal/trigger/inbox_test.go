package trigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInbox_HandlesSettledCSV(t *testing.T) {
	root := t.TempDir()
	keys := make(chan string, 4)
	in := NewInbox(root, 50*time.Millisecond, func(_ context.Context, key string) error {
		keys <- key
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go in.Run(ctx)
	time.Sleep(100 * time.Millisecond) // let the watcher start

	dir := filepath.Join(root, "acme", "m1", "2025-03-04")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond) // let new directories be added

	if err := os.WriteFile(filepath.Join(dir, "export.csv"), []byte("h\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case key := <-keys:
		if key != "acme/m1/2025-03-04/export.csv" {
			t.Errorf("key = %q", key)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("csv file was not handled")
	}

	select {
	case key := <-keys:
		t.Errorf("unexpected second key %q", key)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestInbox_HandlesCSVInNewDirectory(t *testing.T) {
	tests := []struct {
		name     string
		existing string
	}{
		{name: "new tree"},
		{name: "new day folder", existing: filepath.Join("acme", "m1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.existing != "" {
				if err := os.MkdirAll(filepath.Join(root, tt.existing), 0o755); err != nil {
					t.Fatal(err)
				}
			}
			keys := make(chan string, 4)
			in := NewInbox(root, 50*time.Millisecond, func(_ context.Context, key string) error {
				keys <- key
				return nil
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go in.Run(ctx)
			time.Sleep(100 * time.Millisecond) // let the watcher start

			// No pause between creating the directory and writing the export.
			dir := filepath.Join(root, "acme", "m1", "2025-03-04")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "export.csv"), []byte("h\n"), 0o644); err != nil {
				t.Fatal(err)
			}

			select {
			case key := <-keys:
				if key != "acme/m1/2025-03-04/export.csv" {
					t.Errorf("key = %q", key)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("export in new directory was not handled")
			}

			select {
			case key := <-keys:
				t.Errorf("unexpected second key %q", key)
			case <-time.After(200 * time.Millisecond):
			}
		})
	}
}

func TestInbox_Key(t *testing.T) {
	root := t.TempDir()
	in := NewInbox(root, 0, nil)
	if in.settle != DefaultSettle {
		t.Errorf("settle = %v, want %v", in.settle, DefaultSettle)
	}
	key, err := in.key(filepath.Join(root, "a", "b.csv"))
	if err != nil || key != "a/b.csv" {
		t.Errorf("key = %q, %v", key, err)
	}
	if _, err := in.key(filepath.Dir(root)); err == nil {
		t.Error("expected error for path outside root")
	}
}
