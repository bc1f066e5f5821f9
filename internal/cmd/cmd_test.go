package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/planmerge/internal/store"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	writeFile(t, path, `
batch_id: book1
recommendations:
  - title: Add model versioning
    description: Track every trained model with a version.
    priority: important
  - title: Set up data validation
    priority: critical
`)

	batch, batchID, err := readBatch(path)
	if err != nil {
		t.Fatalf("readBatch() error = %v", err)
	}
	if batchID != "book1" {
		t.Errorf("batchID = %q, want book1", batchID)
	}
	if len(batch) != 2 {
		t.Fatalf("len(batch) = %d, want 2", len(batch))
	}
	if batch[0].Priority != store.PriorityImportant {
		t.Errorf("priority = %s, want important", batch[0].Priority)
	}
	if batch[0].BatchID != "book1" {
		t.Errorf("rec batch ID = %q, want book1", batch[0].BatchID)
	}
}

func TestReadBatchMissingFile(t *testing.T) {
	if _, _, err := readBatch(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("readBatch() on missing file succeeded, want error")
	}
}

func TestReadBatchBadPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	writeFile(t, path, `
batch_id: book1
recommendations:
  - title: Something
    priority: urgent
`)
	if _, _, err := readBatch(path); err == nil {
		t.Fatal("readBatch() with unknown priority succeeded, want error")
	}
}

func TestIngestCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	writeFile(t, "batch.yaml", `
batch_id: book1
recommendations:
  - title: Add model versioning
    description: Track every trained model artifact with a version.
    priority: important
`)

	rootCmd.SetArgs([]string{"ingest", "batch.yaml"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("ingest error = %v", err)
	}

	s, err := store.Load(filepath.Join(".planmerge", "recommendations.json"))
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("store size = %d, want 1", s.Len())
	}

	// Re-ingesting the same batch is idempotent.
	rootCmd.SetArgs([]string{"ingest", "batch.yaml"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("second ingest error = %v", err)
	}
	s, err = store.Load(filepath.Join(".planmerge", "recommendations.json"))
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("store size after re-ingest = %d, want 1", s.Len())
	}
}

func TestPhaseLifecycleCommands(t *testing.T) {
	t.Chdir(t.TempDir())

	rootCmd.SetArgs([]string{"phases", "start", "0"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("phases start error = %v", err)
	}
	rootCmd.SetArgs([]string{"phases", "complete", "0"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("phases complete error = %v", err)
	}

	// Completing again is an invalid transition.
	rootCmd.SetArgs([]string{"phases", "complete", "0"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("second complete succeeded, want error")
	}
}

func TestBudgetCommands(t *testing.T) {
	t.Chdir(t.TempDir())

	rootCmd.SetArgs([]string{"budget", "record", "--phase", "1", "--amount", "2.5", "--source", "analysis"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("budget record error = %v", err)
	}
	rootCmd.SetArgs([]string{"budget", "check", "--phase", "1", "--amount", "1"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("budget check error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(".planmerge", "costs.jsonl")); err != nil {
		t.Errorf("ledger file missing: %v", err)
	}
}
