// Command gitctx indexes a git repository's full commit history into a
// semantic vector store and answers natural-language search queries against
// it, following the teacher's cmd/indexer wiring shape generalized to the
// index/search subcommand surface described in SPEC_FULL.md §6.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/gitctx/gitctx/internal/chunker"
	"github.com/gitctx/gitctx/internal/config"
	"github.com/gitctx/gitctx/internal/embedder"
	"github.com/gitctx/gitctx/internal/format"
	"github.com/gitctx/gitctx/internal/gitctxerr"
	"github.com/gitctx/gitctx/internal/indexer"
	"github.com/gitctx/gitctx/internal/registry"
	"github.com/gitctx/gitctx/internal/search"
	"github.com/gitctx/gitctx/internal/store"
	"github.com/gitctx/gitctx/internal/tips"
	"github.com/gitctx/gitctx/internal/walker"
)

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	for _, a := range argv[1:] {
		if a == "--version" {
			fmt.Printf("gitctx version %s\n", version)
			return 0
		}
	}

	if len(argv) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gitctx <index|search> [flags]")
		return 2
	}

	switch argv[1] {
	case "index":
		return runIndex()
	case "search":
		return runSearch()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", argv[1])
		return 2
	}
}

func loadConfig(fsName string, extra func(fs *pflag.FlagSet)) (config.Specification, *pflag.FlagSet, error) {
	fs := pflag.NewFlagSet(fsName, pflag.ContinueOnError)
	if extra != nil {
		extra(fs)
	}
	cfg, err := config.Load("", fs)
	if err != nil {
		return config.Specification{}, fs, err
	}
	fs.Usage = cfg.Usage
	setupLogging(cfg.LogLevel)
	return cfg, fs, nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// resolveModel picks cfg.EmbedModel, or a provider-appropriate default when
// unset, and looks it up in the model registry.
func resolveModel(cfg config.Specification) (registry.ModelSpec, error) {
	model := cfg.EmbedModel
	if model == "" {
		switch cfg.Provider {
		case "vertexai":
			model = "text-embedding-004"
		default:
			model = "text-embedding-3-small"
		}
	}
	return registry.Get(model)
}

func buildProvider(cfg config.Specification, spec registry.ModelSpec) (embedder.Provider, error) {
	return embedder.NewProvider(embedder.Config{
		Provider:  embedder.ProviderName(cfg.Provider),
		Model:     spec.Name,
		APIKey:    cfg.APIKey,
		ProjectID: cfg.ProjectID,
		Location:  cfg.Location,
	})
}

func buildStore(ctx context.Context, cfg config.Specification, dim int) (*store.Store, func(), error) {
	dbDir := filepath.Join(cfg.RepoRoot, config.ConfigDirName, "db")
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, nil, gitctxerr.StorageError("failed to create .gitctx/db", err)
	}
	st, err := store.New(ctx, cfg.Database, filepath.Join(dbDir, ".lock"))
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx, dim); err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, st.Close, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if err == context.Canceled {
		return 130
	}
	return gitctxerr.ExitCode(err)
}

func runIndex() int {
	cfg, _, err := loadConfig("gitctx index", nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	spec, err := resolveModel(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	provider, err := buildProvider(cfg, spec)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, closeStore, err := buildStore(ctx, cfg, spec.Dimensions)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	defer closeStore()

	release, err := st.Lock(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	defer release()

	w := walker.New(cfg.RepoRoot)
	c := chunker.New(spec.MaxTokens)
	e := embedder.New(provider, spec)
	ix := indexer.New(st, w, c, e, spec.Name)

	result, err := ix.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	fmt.Printf("indexed %d blobs (%d embedded, %d refreshed, %d skipped), %d chunks written, $%.4f\n",
		result.BlobsWalked, result.BlobsEmbedded, result.BlobsRefreshed, result.BlobsSkipped,
		result.ChunksWritten, result.TotalCostUSD)

	tips.ShowIfFirstRun(os.Stdout, "index")
	return 0
}

func runSearch() int {
	var limit int
	var head bool
	var formatName string

	cfg, fs, err := loadConfig("gitctx search", func(fs *pflag.FlagSet) {
		fs.IntVar(&limit, "limit", 10, "Maximum number of results")
		fs.BoolVar(&head, "head", false, "Restrict results to blobs present in the current HEAD")
		fs.StringVar(&formatName, "format", "terse", "Output format: terse, verbose, or mcp")
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	args := fs.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gitctx search <query> [--limit N] [--head] [--format terse|verbose|mcp]")
		return 2
	}
	query := args[1]

	formatter, err := format.Get(formatName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	spec, err := resolveModel(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	provider, err := buildProvider(cfg, spec)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, closeStore, err := buildStore(ctx, cfg, spec.Dimensions)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	defer closeStore()

	release, err := st.RLock(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	defer release()

	svc := search.New(st, provider)
	results, err := svc.Search(ctx, query, search.Options{Limit: limit, HeadOnly: head})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	if err := formatter.Format(os.Stdout, results); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	tips.ShowIfFirstRun(os.Stdout, "search")
	return 0
}
