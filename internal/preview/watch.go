package preview

import (
	"context"
	"os"
	"time"

	"github.com/FocuswithJustin/qmdptx/internal/logging"
	"github.com/FocuswithJustin/qmdptx/internal/pipeline"
)

// DefaultInterval is the source polling interval.
const DefaultInterval = time.Second

// Injectable for testing
var osStat = os.Stat

// stamp identifies a version of a source file.
type stamp struct {
	modTime time.Time
	size    int64
	missing bool
}

func (s stamp) same(o stamp) bool {
	return s.modTime.Equal(o.modTime) && s.size == o.size && s.missing == o.missing
}

// Watcher reconverts chapters whose sources change.
type Watcher struct {
	Config   pipeline.Config
	Interval time.Duration
	Server   *Server

	seen map[string]stamp
}

// Run converts every chapter, then polls the sources until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logging.InfoContext(ctx, "watching sources", "chapters", len(w.Config.Manifest.Chapters), "interval", interval.String())

	w.Scan(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Scan(ctx)
		}
	}
}

// Scan converts the chapters whose sources changed since the last scan
// and returns their ids. A source that cannot be read is reported once
// until it changes again.
func (w *Watcher) Scan(ctx context.Context) []string {
	if w.seen == nil {
		w.seen = make(map[string]stamp)
	}

	var changed []string
	for _, ch := range w.Config.Manifest.Chapters {
		if ctx.Err() != nil {
			break
		}

		prev, known := w.seen[ch.ID]
		var cur stamp
		if fi, err := osStat(ch.Source); err == nil {
			cur = stamp{modTime: fi.ModTime(), size: fi.Size()}
		} else {
			cur = stamp{missing: true}
		}
		if known && prev.same(cur) {
			continue
		}

		res := pipeline.ConvertChapter(ctx, w.Config, ch)
		w.seen[ch.ID] = cur
		w.Server.Update(res)
		changed = append(changed, ch.ID)
	}
	if len(changed) > 0 && w.Config.Recent != nil {
		s := w.Config.Recent.Stats()
		logging.DebugContext(ctx, "recent outputs",
			"entries", s.Entries, "bytes", s.Bytes, "hits", s.Hits, "misses", s.Misses, "evictions", s.Evictions)
	}
	return changed
}
