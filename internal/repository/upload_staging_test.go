package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func newTestStaging(t *testing.T) *StagingArea {
	t.Helper()
	return NewStagingArea(t.TempDir(), nil)
}

func TestStageAndDiscard(t *testing.T) {
	area := newTestStaging(t)
	ctx := context.Background()

	sf, err := area.Stage(ctx, strings.NewReader("payload"), "report.tsv")
	if err != nil {
		t.Fatal(err)
	}
	if sf.Name != "report.tsv" {
		t.Errorf("name = %q", sf.Name)
	}

	data, err := os.ReadFile(sf.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}

	if err := area.Discard(sf); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sf.Path); !os.IsNotExist(err) {
		t.Errorf("staged file still present: %v", err)
	}

	// Discarding twice is fine.
	if err := area.Discard(sf); err != nil {
		t.Errorf("second discard = %v", err)
	}
}

func TestStageUniqueNames(t *testing.T) {
	area := newTestStaging(t)
	ctx := context.Background()

	a, err := area.Stage(ctx, strings.NewReader("a"), "same.tsv")
	if err != nil {
		t.Fatal(err)
	}
	b, err := area.Stage(ctx, strings.NewReader("b"), "same.tsv")
	if err != nil {
		t.Fatal(err)
	}
	if a.Path == b.Path {
		t.Error("two staged files share a path")
	}
}

func TestPromoteToRemovesStagedFile(t *testing.T) {
	area := newTestStaging(t)
	ctx := context.Background()

	sf, err := area.Stage(ctx, strings.NewReader("payload"), "report.tsv")
	if err != nil {
		t.Fatal(err)
	}

	dest := t.TempDir() + "/archived.tsv"
	if err := area.PromoteTo(sf, dest); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sf.Path); !os.IsNotExist(err) {
		t.Errorf("staged file survived promotion: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("promoted content = %q", data)
	}
}

func TestStaleSelectsOnlyOldFiles(t *testing.T) {
	area := newTestStaging(t)
	ctx := context.Background()

	old, err := area.Stage(ctx, strings.NewReader("old"), "old.tsv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := area.Stage(ctx, strings.NewReader("fresh"), "fresh.tsv"); err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old.Path, past, past); err != nil {
		t.Fatal(err)
	}

	stale, err := area.Stale(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale file, got %d", len(stale))
	}
	if stale[0].ID != old.ID {
		t.Errorf("stale id = %q, want %q", stale[0].ID, old.ID)
	}
}
