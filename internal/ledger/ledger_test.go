package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/qmdptx/core/cas"
	qerrors "github.com/FocuswithJustin/qmdptx/core/errors"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndLatest(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	if e, err := l.Latest(ctx, "ch-a"); err != nil || e != nil {
		t.Fatalf("Latest on empty ledger = %v, %v", e, err)
	}

	first := Entry{DocID: "ch-a", RunID: "run-1", Source: "a.qmd", Output: "a.ptx", BuildKey: "k1", OutputSHA256: "s1", Bytes: 10,
		ConvertedAt: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)}
	second := Entry{DocID: "ch-a", RunID: "run-2", Source: "a.qmd", Output: "a.ptx", BuildKey: "k2", OutputSHA256: "s2", Bytes: 20}
	other := Entry{DocID: "ch-b", RunID: "run-2", Source: "b.qmd", Output: "b.ptx", BuildKey: "k3", OutputSHA256: "s3", Bytes: 30}

	for _, e := range []Entry{first, second, other} {
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) failed: %v", e.DocID, err)
		}
	}

	latest, err := l.Latest(ctx, "ch-a")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.RunID != "run-2" || latest.BuildKey != "k2" || latest.Bytes != 20 {
		t.Errorf("Latest = %+v", latest)
	}
	if latest.ConvertedAt.IsZero() {
		t.Error("Record should stamp a zero ConvertedAt")
	}

	all, err := l.History(ctx, "", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("History(all) = %d entries, %v", len(all), err)
	}
	if all[0].DocID != "ch-b" {
		t.Errorf("History should be newest first, got %s", all[0].DocID)
	}
	if !all[2].ConvertedAt.Equal(first.ConvertedAt) {
		t.Errorf("timestamp round trip: %v != %v", all[2].ConvertedAt, first.ConvertedAt)
	}

	onlyA, err := l.History(ctx, "ch-a", 1)
	if err != nil || len(onlyA) != 1 || onlyA[0].RunID != "run-2" {
		t.Errorf("History(ch-a, 1) = %+v, %v", onlyA, err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Record(ctx, Entry{DocID: "ch", RunID: "r", Source: "s", Output: "o", BuildKey: "k", OutputSHA256: "h"}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer ro.Close()
	if ro.Path() != path {
		t.Errorf("Path() = %s", ro.Path())
	}
	e, err := ro.Latest(ctx, "ch")
	if err != nil || e == nil || e.BuildKey != "k" {
		t.Errorf("Latest after reopen = %+v, %v", e, err)
	}
}

func TestOpenReadOnlyMissing(t *testing.T) {
	var nf *qerrors.NotFoundError
	if _, err := OpenReadOnly(filepath.Join(t.TempDir(), "none.db")); !errors.As(err, &nf) {
		t.Errorf("OpenReadOnly(missing) = %v", err)
	}
}

func TestEntryCurrent(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "a.ptx")
	data := []byte("<p>x</p>")
	if err := os.WriteFile(out, data, 0644); err != nil {
		t.Fatal(err)
	}
	e := &Entry{Output: out, BuildKey: "key", OutputSHA256: cas.Hash(data)}

	tests := []struct {
		name  string
		setup func()
		key   string
		want  bool
	}{
		{"matching", func() {}, "key", true},
		{"different key", func() {}, "other", false},
		{"output edited", func() { os.WriteFile(out, []byte("edited"), 0644) }, "key", false},
		{"output deleted", func() { os.Remove(out) }, "key", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			if got := e.Current(tt.key); got != tt.want {
				t.Errorf("Current(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}

	var nilEntry *Entry
	if nilEntry.Current("key") {
		t.Error("nil entry is never current")
	}
}
