package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/hobeone/epnamer/config"
	"github.com/hobeone/epnamer/db"
	"github.com/hobeone/epnamer/indexers"
	"github.com/hobeone/epnamer/indexers/tvmaze"
	"github.com/hobeone/epnamer/renamer"
	"github.com/hobeone/epnamer/storage"
	"github.com/hobeone/epnamer/undo"
	"github.com/hobeone/epnamer/web"
)

// suggestUndo as the undo script path puts the platform's suggested script
// name next to the first path being renamed.
const suggestUndo = "suggested"

// App contains everything needed to run epnamer.
type App struct {
	Config  *config.Config
	DBH     *db.Handle
	Indexer indexers.Indexer
	Broker  *storage.Broker
	Out     io.Writer
	In      io.Reader
}

// NewApp opens the database and sets up the guide indexer described by cfg.
func NewApp(cfg *config.Config) (*App, error) {
	var dbh *db.Handle
	if cfg.DB.Type == "memory" {
		dbh = db.NewMemoryDBHandle(cfg.DB.Verbose)
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
		var err error
		dbh, err = db.NewDBHandle(cfg.DB.Path, cfg.DB.Verbose)
		if err != nil {
			return nil, fmt.Errorf("error opening database %s: %w", cfg.DB.Path, err)
		}
	}

	reg := indexers.IndexerRegistry{
		"tvmaze": tvmaze.NewTVMazeIndexer(
			tvmaze.SetClient(&http.Client{Timeout: cfg.Guide.Timeout.Duration}),
			tvmaze.SetURL(cfg.Guide.URL),
			tvmaze.SetMinSimilarity(cfg.Guide.MinSimilarity),
		),
	}
	if cfg.Guide.GuideFile != "" {
		static, err := indexers.LoadStaticIndexer(cfg.Guide.GuideFile)
		if err != nil {
			dbh.Close()
			return nil, err
		}
		reg["static"] = static
	}
	idx, err := reg.Get(cfg.Guide.Indexer)
	if err != nil {
		dbh.Close()
		return nil, err
	}
	// Guide files are already local.
	if cfg.Guide.CacheTTL.Duration > 0 && cfg.Guide.Indexer != "static" {
		idx = indexers.NewCachingIndexer(idx, dbh, indexers.SetTTL(cfg.Guide.CacheTTL.Duration))
	}

	return &App{
		Config:  cfg,
		DBH:     dbh,
		Indexer: idx,
		Broker:  storage.NewBroker(nil, storage.SetMediaOnly(cfg.Naming.MediaOnly)),
		Out:     os.Stdout,
		In:      os.Stdin,
	}, nil
}

// renameOptions are the command line choices for one rename.
type renameOptions struct {
	UndoScript string
	Format     undo.Format
	DryRun     bool
	Yes        bool
}

func (a *App) confirm(question string) bool {
	fmt.Fprintf(a.Out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(a.In).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *App) printMap(rm *renamer.RenameMap) {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	for _, e := range rm.Sorted() {
		fmt.Fprintf(w, "%s\t->\t%s\t%s\n",
			filepath.Base(e.Source),
			filepath.Base(e.Destination),
			humanize.Bytes(uint64(a.Broker.Size(e.Source))),
		)
	}
	w.Flush()
	for _, c := range rm.Collisions {
		fmt.Fprintf(a.Out, "Skipped: %s\n", c)
	}
	if rm.Source != "" {
		fmt.Fprintf(a.Out, "Episode guide: %s\n", rm.Source)
	}
}

func undoScriptPath(path string, format undo.Format, roots []string) string {
	if path != suggestUndo {
		return path
	}
	dir := roots[0]
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	return filepath.Join(dir, undo.SuggestedName(format))
}

func (a *App) rename(ctx context.Context, req renamer.Request, opts renameOptions) error {
	rm, err := renamer.Generate(ctx, a.Indexer, a.Broker, req)
	if err != nil {
		return err
	}
	a.printMap(rm)
	if rm.Len() == 0 {
		return rm.CollisionErr()
	}
	if opts.DryRun {
		fmt.Fprintf(a.Out, "Dry run, %d files not renamed.\n", rm.Len())
		return rm.CollisionErr()
	}

	question := fmt.Sprintf("Rename %d files?", rm.Len())
	if opts.UndoScript == "" {
		question = fmt.Sprintf("Rename %d files without an undo script?", rm.Len())
	}
	if !opts.Yes && !a.confirm(question) {
		fmt.Fprintln(a.Out, "Nothing renamed.")
		return nil
	}

	run, err := renamer.Commit(a.Broker, rm, renamer.CommitOptions{
		UndoScript: opts.UndoScript,
		Format:     opts.Format,
		Confirmed:  true,
		History:    a.DBH,
	})
	if run != nil && run.Result != nil {
		fmt.Fprintf(a.Out, "Renamed %d files (run %s).\n", len(run.Result.Renamed), run.ID)
		if opts.UndoScript != "" {
			fmt.Fprintf(a.Out, "Undo script: %s\n", opts.UndoScript)
		}
	}
	if err != nil {
		var rf *renamer.RenameFailure
		if errors.As(err, &rf) {
			for _, e := range rf.NotAttempted {
				fmt.Fprintf(a.Out, "Not attempted: %s\n", e.Source)
			}
		}
		return err
	}
	return rm.CollisionErr()
}

func (a *App) history(limit int) error {
	runs, err := a.DBH.GetRuns(limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSHOW\tSTATUS\tPLANNED\tWHEN")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.ShowName, r.Status, r.Planned, humanize.Time(r.CreatedAt))
	}
	return w.Flush()
}

func (a *App) undoRun(runID string, opts renameOptions) error {
	if opts.UndoScript == suggestUndo {
		stored, err := a.DBH.GetRun(runID)
		if err != nil {
			return fmt.Errorf("error reading run %s: %w", runID, err)
		}
		if len(stored.Records) == 0 {
			return fmt.Errorf("run %s renamed nothing, there is nothing to undo", runID)
		}
		// The revert's own undo script goes where the files end up.
		opts.UndoScript = undoScriptPath(suggestUndo, opts.Format, []string{filepath.Dir(stored.Records[0].To)})
	}
	run, err := renamer.Revert(a.Broker, a.DBH, runID, renamer.CommitOptions{
		UndoScript: opts.UndoScript,
		Format:     opts.Format,
	})
	if run != nil && run.Result != nil {
		fmt.Fprintf(a.Out, "Restored %d files (run %s).\n", len(run.Result.Renamed), run.ID)
	}
	return err
}

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func loadConfig(configFile string) *config.Config {
	if len(configFile) == 0 {
		glog.Infof("No --config_file given.  Using default: %s\n",
			config.DefaultPath)
		configFile = config.DefaultPath
	}

	glog.Infof("Got config file: %s\n", configFile)
	cfg := config.NewConfig()
	err := cfg.ReadConfig(configFile)
	if err != nil {
		if configFile == config.DefaultPath && errors.Is(err, os.ErrNotExist) {
			glog.Infof("No config file found, using defaults")
			return cfg
		}
		glog.Fatal(err)
	}
	return cfg
}

func main() {
	defer glog.Flush()
	flag.Set("alsologtostderr", "true")

	var patterns stringList
	cfgfile := flag.String("config_file", config.DefaultPath, "Config file to use")
	show := flag.String("show", "", "Name of the show the files belong to")
	flag.Var(&patterns, "pattern", "Episode regex with (?P<season>) and (?P<episode>) groups, replaces the built in ones (repeatable)")
	template := flag.String("template", "", "Naming template, e.g. '{{.Show}} - {{.Code}} - {{.Title}}'")
	undoScript := flag.String("undo", "", "Write an undo script to this path ('"+suggestUndo+"' to put one next to the files)")
	undoFormat := flag.String("undo_format", "", "Undo script format: sh or bat")
	dryRun := flag.Bool("dry_run", false, "Only show what would be renamed")
	refresh := flag.Bool("refresh", false, "Ignore any cached episode guide for the show")
	yes := flag.Bool("yes", false, "Don't ask for confirmation")
	serve := flag.Bool("serve", false, "Run the web API instead of renaming")
	historyFlag := flag.Int("history", 0, "List this many recent rename runs")
	undoRun := flag.String("undo_run", "", "Revert the rename run with this id")

	flag.Parse()

	cfg := loadConfig(*cfgfile)
	if len(patterns) > 0 {
		cfg.Naming.Patterns = patterns
	}
	if *template != "" {
		cfg.Naming.Template = *template
	}
	if *undoScript != "" {
		cfg.Undo.Script = *undoScript
	}
	if *undoFormat != "" {
		cfg.Undo.Format = *undoFormat
	}
	format, err := undo.FormatFromString(cfg.Undo.Format)
	if err != nil {
		glog.Fatal(err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		glog.Fatal(err)
	}
	defer app.DBH.Close()

	switch {
	case *serve:
		err = web.StartServer(web.NewServer(cfg, app.DBH, app.Indexer, app.Broker))
	case *historyFlag > 0:
		err = app.history(*historyFlag)
	case *undoRun != "":
		err = app.undoRun(*undoRun, renameOptions{UndoScript: cfg.Undo.Script, Format: format})
	default:
		if *show == "" || flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "usage: epnamer -show NAME [flags] PATH...")
			flag.PrintDefaults()
			os.Exit(2)
		}
		req := renamer.Request{
			Roots:             flag.Args(),
			ShowName:          *show,
			Patterns:          cfg.Naming.Patterns,
			Template:          cfg.Naming.Template,
			BareEpisodeDigits: cfg.Naming.BareEpisodeDigits,
			Refresh:           *refresh,
		}
		err = app.rename(context.Background(), req, renameOptions{
			UndoScript: undoScriptPath(cfg.Undo.Script, format, req.Roots),
			Format:     format,
			DryRun:     *dryRun,
			Yes:        *yes,
		})
	}
	if err != nil {
		glog.Error(err)
		glog.Flush()
		os.Exit(1)
	}
}
