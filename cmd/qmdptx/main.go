// Command qmdptx converts Quarto markdown chapters into PreText XML.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/FocuswithJustin/qmdptx/core/bundle"
	"github.com/FocuswithJustin/qmdptx/core/cache"
	"github.com/FocuswithJustin/qmdptx/core/cas"
	"github.com/FocuswithJustin/qmdptx/core/errors"
	"github.com/FocuswithJustin/qmdptx/core/pretext"
	"github.com/FocuswithJustin/qmdptx/core/sqlite"
	"github.com/FocuswithJustin/qmdptx/core/xml"
	"github.com/FocuswithJustin/qmdptx/internal/ledger"
	"github.com/FocuswithJustin/qmdptx/internal/logging"
	"github.com/FocuswithJustin/qmdptx/internal/manifest"
	"github.com/FocuswithJustin/qmdptx/internal/pipeline"
	"github.com/FocuswithJustin/qmdptx/internal/preview"
	"github.com/FocuswithJustin/qmdptx/internal/source"
	"github.com/FocuswithJustin/qmdptx/internal/validation"
)

var version = "0.4.0"

// configPaths are the JSON files kong reads flag defaults from.
var configPaths = []string{".qmdptx.json", "~/.config/qmdptx/config.json"}

// CLI defines the command-line interface for qmdptx.
type CLI struct {
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error"`
	LogFormat string `name:"log-format" help:"Log format (auto, json, text)" default:"auto" enum:"auto,json,text"`

	Convert ConvertCmd `cmd:"" default:"withargs" help:"Convert every chapter of a book"`
	File    FileCmd    `cmd:"" help:"Convert a single document"`
	Check   CheckCmd   `cmd:"" help:"Check that PreText files are well-formed"`
	Watch   WatchCmd   `cmd:"" help:"Reconvert chapters on change and serve a live preview"`
	History HistoryCmd `cmd:"" help:"Show the conversion ledger"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// app carries what commands share.
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
}

// state opens the ledger and output cache kept under dir. An empty dir
// disables both.
type state struct {
	ledger *ledger.Ledger
	cache  *cas.Store
}

func openState(dir string) (*state, error) {
	if dir == "" {
		return &state{}, nil
	}
	if err := validation.ValidatePath(dir); err != nil {
		return nil, &errors.ValidationError{Field: "state", Message: err.Error(), Err: err}
	}
	l, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		return nil, err
	}
	store, err := cas.NewStore(filepath.Join(dir, "cache"))
	if err != nil {
		l.Close()
		return nil, err
	}
	return &state{ledger: l, cache: store}, nil
}

func (s *state) Close() error {
	if s.ledger != nil {
		return s.ledger.Close()
	}
	return nil
}

func loadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		return manifest.Default(), nil
	}
	return manifest.Load(path)
}

// ConvertCmd converts every chapter of a manifest.
type ConvertCmd struct {
	Manifest string `short:"m" help:"Book manifest (JSON); the built-in book when empty" type:"path"`
	Jobs     int    `short:"j" help:"Chapters converted at once (0 = one per CPU)" default:"0"`
	Check    bool   `help:"Check that every output is well-formed"`
	Force    bool   `short:"f" help:"Convert even when the output is current"`
	State    string `help:"Directory for the build ledger and output cache" type:"path"`
	Bundle   string `help:"Also pack the outputs into a .tar.xz or .tar.gz bundle" type:"path"`
}

func (c *ConvertCmd) Run(a *app) error {
	m, err := loadManifest(c.Manifest)
	if err != nil {
		return err
	}
	st, err := openState(c.State)
	if err != nil {
		return err
	}
	defer st.Close()

	results, runErr := pipeline.Run(a.ctx, pipeline.Config{
		Manifest: m,
		Jobs:     c.Jobs,
		Check:    c.Check,
		Force:    c.Force,
		Ledger:   st.ledger,
		Cache:    st.cache,
		Version:  version,
	})
	for _, r := range results {
		if r.Err != nil {
			break
		}
		fmt.Fprintf(a.stdout, "%s %s, length: %d (%s)\n",
			r.Chapter.ID, r.Status, r.Length, humanize.Bytes(uint64(len(r.Output))))
	}
	if runErr != nil {
		return runErr
	}

	if c.Bundle != "" {
		if err := packBundle(c.Bundle, st.cache, results); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Bundle written to %s\n", c.Bundle)
	}

	fmt.Fprintln(a.stdout, "Conversion complete!")
	return nil
}

func packBundle(path string, store *cas.Store, results []pipeline.Result) error {
	compression, err := bundle.CompressionFor(path)
	if err != nil {
		return err
	}
	if store == nil {
		tmp, err := os.MkdirTemp("", "qmdptx-bundle-*")
		if err != nil {
			return errors.NewIO("write", path, err)
		}
		defer os.RemoveAll(tmp)
		if store, err = cas.NewStore(tmp); err != nil {
			return err
		}
	}

	b := bundle.New(store, bundle.Generator{Name: "qmdptx", Version: version})
	for _, r := range results {
		if _, err := b.Add(r.Chapter.ID, r.Title, r.Chapter.Source, r.Output); err != nil {
			return err
		}
	}
	return b.Pack(path, compression)
}

// FileCmd converts one document.
type FileCmd struct {
	Source   string `arg:"" help:"Quarto markdown source"`
	ID       string `help:"Document id (default: front matter id or the file name)"`
	Title    string `help:"Document title (default: front matter title)"`
	Out      string `short:"o" help:"Output file, - for stdout" default:"-"`
	Wrap     bool   `help:"Wrap the body in a chapter element"`
	Check    bool   `help:"Check that the output is well-formed"`
	Language string `help:"Language for code fences that declare none" default:"r"`
}

func (c *FileCmd) Run(a *app) error {
	doc, err := source.Load(c.Source)
	if err != nil {
		return err
	}

	id := c.ID
	if id == "" {
		id = doc.Meta.ID
	}
	if id == "" {
		base := filepath.Base(c.Source)
		id = pretext.Slug(strings.TrimSuffix(base, filepath.Ext(base)))
	}
	title := c.Title
	if title == "" {
		title = doc.Meta.Title
	}

	opts := pretext.DefaultOptions()
	opts.WrapChapter = c.Wrap
	opts.DefaultLanguage = c.Language
	out := pretext.ConvertDocument(pretext.Document{ID: id, Title: title, Text: doc.Text}, opts)

	if c.Check {
		if res := xml.CheckFragment(out); !res.Valid {
			for _, p := range res.Errors {
				logging.WarnContext(a.ctx, "output not well-formed", "doc_id", id, "problem", p.String())
			}
		}
	}

	if c.Out == "-" {
		_, err := io.WriteString(a.stdout, out)
		return err
	}
	if err := pipeline.WriteOutput(c.Out, []byte(out)); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s converted, length: %d (%s)\n",
		id, len([]rune(out)), humanize.Bytes(uint64(len(out))))
	return nil
}

// CheckCmd checks emitted markup for well-formedness.
type CheckCmd struct {
	Files    []string `arg:"" help:"PreText files to check" type:"existingfile"`
	Document bool     `help:"Treat files as complete documents rather than fragments"`
}

func (c *CheckCmd) Run(a *app) error {
	bad := 0
	for _, path := range c.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.NewIO("read", path, err)
		}

		var res xml.ValidationResult
		if c.Document {
			res = xml.Validate(data)
		} else {
			res = xml.CheckFragment(string(data))
		}

		if res.Valid {
			fmt.Fprintf(a.stdout, "%s: ok (%s)\n", path, outline(data, c.Document))
			continue
		}
		bad++
		for _, p := range res.Errors {
			fmt.Fprintf(a.stdout, "%s:%s\n", path, p)
		}
	}
	if bad > 0 {
		return errors.NewValidation("check", fmt.Sprintf("%d of %d files not well-formed", bad, len(c.Files)))
	}
	return nil
}

// outline summarises the structure of well-formed markup.
func outline(data []byte, document bool) string {
	var doc *xml.Document
	var err error
	if document {
		doc, err = xml.Parse(data)
	} else {
		doc, err = xml.ParseFragment(string(data))
	}
	if err != nil {
		return "unreadable"
	}

	var parts []string
	for _, el := range []string{"section", "subsection", "figure", "program"} {
		nodes, err := doc.XPath("//" + el)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s", len(nodes), english.PluralWord(len(nodes), el, "")))
	}
	return strings.Join(parts, ", ")
}

// WatchCmd reconverts chapters when their sources change.
type WatchCmd struct {
	Manifest    string        `short:"m" help:"Book manifest (JSON); the built-in book when empty" type:"path"`
	Addr        string        `help:"Preview server address" default:"127.0.0.1:8035"`
	Interval    time.Duration `help:"Source polling interval" default:"1s"`
	Check       bool          `help:"Check that every output is well-formed"`
	State       string        `help:"Directory for the build ledger and output cache" type:"path"`
	AllowOrigin []string      `name:"allow-origin" help:"Extra browser origins allowed on /ws"`
}

func (c *WatchCmd) Run(a *app) error {
	m, err := loadManifest(c.Manifest)
	if err != nil {
		return err
	}
	st, err := openState(c.State)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()

	hub := preview.NewHub()
	hub.AllowedOrigins = c.AllowOrigin
	go hub.Run(ctx)

	srv := preview.NewServer(hub)
	w := &preview.Watcher{
		Config: pipeline.Config{
			Manifest: m,
			Check:    c.Check,
			Ledger:   st.ledger,
			Cache:    st.cache,
			Recent:   cache.NewDefaultOutputCache(),
			Version:  version,
		},
		Interval: c.Interval,
		Server:   srv,
	}

	watchDone := make(chan error, 1)
	go func() { watchDone <- w.Run(ctx) }()

	fmt.Fprintf(a.stdout, "Preview at http://%s/docs (events on ws://%s/ws)\n", c.Addr, c.Addr)
	err = srv.ListenAndServe(ctx, c.Addr)
	cancel()
	if werr := <-watchDone; err == nil {
		err = werr
	}
	return err
}

// HistoryCmd prints ledger entries, newest first.
type HistoryCmd struct {
	ID    string `arg:"" optional:"" help:"Only show this chapter"`
	State string `required:"" help:"Directory holding the build ledger" type:"path"`
	Limit int    `short:"n" help:"Maximum entries (0 = all)" default:"20"`
}

func (c *HistoryCmd) Run(a *app) error {
	l, err := ledger.OpenReadOnly(filepath.Join(c.State, "ledger.db"))
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.History(a.ctx, c.ID, c.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "No conversions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHAPTER\tSIZE\tWHEN\tOUTPUT\tSHA256")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.DocID, humanize.Bytes(uint64(e.Bytes)), humanize.Time(e.ConvertedAt), e.Output, short(e.OutputSHA256))
	}
	return tw.Flush()
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(a *app) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(a.stdout, "qmdptx version %s\n", version)
	fmt.Fprintf(a.stdout, "sqlite driver: %s (%s)\n", info.Package, info.DriverType)
	return nil
}

// run parses args, executes the selected command and returns the exit
// status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("qmdptx"),
		kong.Description("Convert Quarto markdown chapters to PreText XML"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Configuration(kong.JSON, configPaths...),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		fmt.Fprintln(stderr, errors.Describe(err))
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "qmdptx: %v\n", err)
		return 1
	}

	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, errors.Describe(err))
		return 1
	}
	format, err := logging.ParseFormat(cli.LogFormat)
	if err != nil {
		fmt.Fprintln(stderr, errors.Describe(err))
		return 1
	}
	logging.InitLogger(stderr, level, format)

	ctx = logging.WithRunID(ctx, logging.NewRunID())
	if err := kctx.Run(&app{ctx: ctx, stdout: stdout, stderr: stderr}); err != nil {
		logging.DebugContext(ctx, "command failed", "command", kctx.Command(), "error", err)
		fmt.Fprintln(stderr, errors.Describe(err))
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
