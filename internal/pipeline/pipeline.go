// Package pipeline converts the chapters of a book in parallel.
//
// Every chapter goes through the same steps: load the source, decide
// whether the ledger or the output cache make conversion unnecessary,
// convert, optionally check well-formedness, write the output and record
// the result.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/FocuswithJustin/qmdptx/core/cache"
	"github.com/FocuswithJustin/qmdptx/core/cas"
	"github.com/FocuswithJustin/qmdptx/core/errors"
	"github.com/FocuswithJustin/qmdptx/core/pretext"
	"github.com/FocuswithJustin/qmdptx/core/xml"
	"github.com/FocuswithJustin/qmdptx/internal/ledger"
	"github.com/FocuswithJustin/qmdptx/internal/logging"
	"github.com/FocuswithJustin/qmdptx/internal/manifest"
	"github.com/FocuswithJustin/qmdptx/internal/source"
)

// Injectable functions for testing
var (
	osCreateTemp = os.CreateTemp
	osRename     = os.Rename
)

// Config controls a pipeline run.
type Config struct {
	Manifest *manifest.Manifest

	// Jobs is the number of chapters converted at once; <= 0 means one
	// per CPU.
	Jobs int

	// Check runs a well-formedness check on every output.
	Check bool

	// Force converts every chapter even when the ledger or the cache
	// says it is unchanged.
	Force bool

	// Ledger, Cache and Recent are optional. Cache persists outputs on
	// disk; Recent keeps them in memory for the life of the process.
	Ledger *ledger.Ledger
	Cache  *cas.Store
	Recent *cache.OutputCache

	// Version is mixed into build keys so that a new converter
	// invalidates old outputs.
	Version string
}

// Status says what happened to a chapter.
type Status int

const (
	StatusFailed Status = iota
	StatusConverted
	StatusRestored  // output taken from a cache
	StatusUnchanged // output on disk already current
)

func (s Status) String() string {
	switch s {
	case StatusConverted:
		return "converted"
	case StatusRestored:
		return "restored"
	case StatusUnchanged:
		return "unchanged"
	default:
		return "failed"
	}
}

// Result describes the outcome for one chapter.
type Result struct {
	Chapter manifest.Chapter
	Title   string
	Status  Status

	// Output is the converted markup.
	Output []byte
	// Length counts the characters of Output.
	Length   int
	SHA256   string
	BuildKey string

	// Problems lists well-formedness errors when Config.Check is set.
	Problems []xml.ValidationError

	Duration time.Duration
	Err      error
}

type job struct {
	index   int
	chapter manifest.Chapter
}

// Run converts every chapter of the manifest. Every source is checked
// before any conversion starts; a missing one aborts the run. Otherwise
// all chapters are attempted and the results come back in manifest order,
// along with the first error in that order.
func Run(ctx context.Context, cfg Config) ([]Result, error) {
	chapters := cfg.Manifest.Chapters
	for _, ch := range chapters {
		if err := source.Check(ch.Source); err != nil {
			return nil, err
		}
	}

	pool := NewWorkerPool[job, indexed](cfg.Jobs, len(chapters))
	pool.Start(func(j job) indexed {
		return indexed{j.index, ConvertChapter(ctx, cfg, j.chapter)}
	})
	for i, ch := range chapters {
		pool.Submit(job{index: i, chapter: ch})
	}
	pool.Close()

	results := make([]Result, len(chapters))
	for r := range pool.Results() {
		results[r.index] = r.result
	}

	for _, r := range results {
		if r.Err != nil {
			return results, r.Err
		}
	}
	return results, nil
}

type indexed struct {
	index  int
	result Result
}

// ConvertChapter runs the pipeline for a single chapter.
func ConvertChapter(ctx context.Context, cfg Config, ch manifest.Chapter) Result {
	start := time.Now()
	res := Result{Chapter: ch, Title: ch.Title}
	fail := func(err error) Result {
		res.Status = StatusFailed
		res.Err = err
		res.Duration = time.Since(start)
		logging.ConversionFailed(ctx, ch.ID, err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	logging.ConversionStarted(ctx, ch.ID, ch.Source)

	doc, err := source.Load(ch.Source)
	if err != nil {
		return fail(err)
	}
	if res.Title == "" {
		res.Title = doc.Meta.Title
	}
	if res.Title == "" {
		res.Title = ch.ID
	}

	opts := cfg.Manifest.Options()
	res.BuildKey = cas.BuildKey(cfg.Version, fmt.Sprintf("%+v", opts), ch.ID, res.Title, doc.Text)

	out, status, err := produce(ctx, cfg, ch, res, pretext.Document{ID: ch.ID, Title: res.Title, Text: doc.Text}, opts)
	if err != nil {
		return fail(err)
	}
	res.Output = out
	res.Status = status
	res.Length = utf8.RuneCount(out)
	res.SHA256 = cas.Hash(out)

	if cfg.Check {
		if check := xml.CheckFragment(string(out)); !check.Valid {
			res.Problems = check.Errors
			for _, p := range check.Errors {
				logging.WarnContext(ctx, "output not well-formed", "doc_id", ch.ID, "problem", p.String())
			}
		}
	}

	if status != StatusUnchanged {
		if err := WriteOutput(ch.Output, out); err != nil {
			return fail(err)
		}
	}
	if err := remember(ctx, cfg, ch, res); err != nil {
		return fail(err)
	}

	res.Duration = time.Since(start)
	if status == StatusUnchanged {
		logging.ConversionSkipped(ctx, ch.ID, "output is current")
	} else {
		logging.ConversionCompleted(ctx, ch.ID, ch.Output, len(out), res.Duration, "status", status.String())
	}
	return res
}

// produce returns the chapter's markup, converting only when neither the
// ledger nor the cache already has it.
func produce(ctx context.Context, cfg Config, ch manifest.Chapter, res Result, doc pretext.Document, opts pretext.Options) ([]byte, Status, error) {
	if !cfg.Force && cfg.Ledger != nil {
		latest, err := cfg.Ledger.Latest(ctx, ch.ID)
		if err != nil {
			return nil, StatusFailed, err
		}
		if latest != nil && latest.Output == ch.Output && latest.Current(res.BuildKey) {
			data, err := os.ReadFile(ch.Output)
			if err == nil {
				return data, StatusUnchanged, nil
			}
		}
	}

	if !cfg.Force && cfg.Recent != nil {
		if data, ok := cfg.Recent.Get(res.BuildKey); ok {
			return data, StatusRestored, nil
		}
	}

	if !cfg.Force && cfg.Cache != nil {
		if data, _, err := cfg.Cache.Lookup(res.BuildKey); err == nil {
			return data, StatusRestored, nil
		}
	}

	return []byte(pretext.ConvertDocument(doc, opts)), StatusConverted, nil
}

// remember stores the output in the caches and records the run in the
// ledger. Unchanged chapters are not recorded again.
func remember(ctx context.Context, cfg Config, ch manifest.Chapter, res Result) error {
	if cfg.Recent != nil {
		cfg.Recent.Put(res.BuildKey, res.Output)
	}
	if cfg.Cache != nil {
		hash, err := cfg.Cache.Put(res.Output)
		if err != nil {
			return errors.Wrap(err, "caching "+ch.ID)
		}
		if err := cfg.Cache.Link(res.BuildKey, hash); err != nil {
			return errors.Wrap(err, "caching "+ch.ID)
		}
	}
	if cfg.Ledger != nil && res.Status != StatusUnchanged {
		return cfg.Ledger.Record(ctx, ledger.Entry{
			DocID:        ch.ID,
			RunID:        logging.GetRunID(ctx),
			Source:       ch.Source,
			Output:       ch.Output,
			BuildKey:     res.BuildKey,
			OutputSHA256: res.SHA256,
			Bytes:        len(res.Output),
		})
	}
	return nil
}

// WriteOutput replaces path with data through a temp file in the same
// directory. Any failure is an IOError for path.
func WriteOutput(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIO("write", path, err)
	}

	tmp, err := osCreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("write", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("write", path, err)
	}
	if err := osRename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("write", path, err)
	}
	return nil
}
