package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bastiangx/wordmux/internal/cli"
	"github.com/bastiangx/wordmux/internal/logger"
	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/cache"
	"github.com/bastiangx/wordmux/pkg/config"
	"github.com/bastiangx/wordmux/pkg/dictionary"
	"github.com/bastiangx/wordmux/pkg/engine"
	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/server"
	"github.com/bastiangx/wordmux/pkg/store"
)

const (
	flushTimeout     = 5 * time.Second
	responseBaseCost = 64
)

// app is the wired engine plus everything it needs released on exit.
type app struct {
	cfg     *config.Config
	dataDir string
	eng     *engine.Engine
	loader  *dictionary.Loader
	persist store.Persistence
	cache   *cache.Ristretto[engine.Response]
	watcher *dictionary.Watcher
}

func setup(ctx context.Context, f *rootFlags) (*app, error) {
	logger.Setup(f.debug)

	cfg, cfgPath, err := config.LoadConfigWithPriority(f.configPath)
	if err != nil {
		return nil, err
	}
	configDir := ""
	if cfgPath != "" {
		configDir = filepath.Dir(cfgPath)
	} else if dir, err := config.GetConfigDir(); err == nil {
		configDir = dir
	}

	a := &app{cfg: cfg}
	dataPath := cfg.Dict.Path
	if f.dataDir != "" {
		dataPath = f.dataDir
	}
	a.dataDir = utils.ResolveDataDir(dataPath, configDir)

	lex := lexicon.Default()
	if cfg.Lexicon.Path != "" {
		l, err := lexicon.Load(utils.GetAbsolutePath(cfg.Lexicon.Path))
		if err != nil {
			log.Warnf("Failed to load lexicon %s: %v. Using builtin lexicon", cfg.Lexicon.Path, err)
		} else {
			lex = l
		}
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = filepath.Join(configDir, "state")
	}
	a.persist, err = store.Open(cfg.Store.Backend, storePath)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	a.loader = dictionary.NewLoader(a.dataDir, cfg.Dict.MaxWords, cfg.Dict.MinFreqThreshold)
	freq, err := a.loader.Load(ctx)
	if err != nil {
		log.Warnf("Failed to load dictionary from %s: %v", a.dataDir, err)
	}

	ec := cfg.EngineOptions()
	if f.limit > 0 {
		ec.DefaultLimit = f.limit
	}
	opts := []engine.Option{
		engine.WithConfig(ec),
		engine.WithPersistence(a.persist),
		engine.WithLexicon(lex),
		engine.WithDictionary(freq),
		engine.WithLogger(logger.New("engine")),
	}
	if cfg.Cache.Enabled {
		c, err := cache.NewRistretto(cache.Config{
			MaxCost: cfg.Cache.MaxCost,
			TTL:     time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		}, func(r engine.Response) int64 {
			return responseBaseCost * int64(len(r.Suggestions)+1)
		})
		if err != nil {
			log.Warnf("Response cache disabled: %v", err)
		} else {
			a.cache = c
			opts = append(opts, engine.WithCache(c))
		}
	}

	a.eng, err = engine.New(opts...)
	switch {
	case errors.Is(err, engine.ErrEmptyDictionary):
		log.Warnf("No dictionary words loaded from %s; only learned and builtin suggestions are available", a.dataDir)
	case err != nil:
		a.close()
		return nil, err
	}
	if err := a.eng.Restore(ctx); err != nil {
		log.Warnf("Failed to restore learned state: %v", err)
	}
	return a, nil
}

// reload re-reads the dictionary and swaps it into the engine.
func (a *app) reload(ctx context.Context) error {
	freq, err := a.loader.Load(ctx)
	if err != nil {
		return err
	}
	return a.eng.ReloadDictionary(ctx, freq)
}

func (a *app) watch(ctx context.Context) {
	if !a.cfg.Dict.Watch {
		return
	}
	w, err := dictionary.NewWatcher(a.loader, 0, func(freq map[string]int) error {
		return a.eng.ReloadDictionary(ctx, freq)
	})
	if err != nil {
		log.Warnf("Dictionary watch disabled: %v", err)
		return
	}
	w.Start(ctx)
	a.watcher = w
}

func (a *app) close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			log.Debugf("close watcher: %v", err)
		}
	}
	if a.eng != nil {
		if err := a.eng.Close(); err != nil {
			log.Debugf("close engine: %v", err)
		}
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.persist == nil {
		return
	}
	done := make(chan error, 1)
	go func() { done <- a.persist.Close() }()
	select {
	case err := <-done:
		if err != nil {
			log.Errorf("Failed to save learned state: %v", err)
		}
	case <-time.After(flushTimeout):
		log.Errorf("Timed out saving learned state")
	}
}

func (a *app) limit(f *rootFlags, fallback int) int {
	if f.limit > 0 {
		return f.limit
	}
	return fallback
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve suggestions over msgpack on stdin/stdout (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}
}

func runServe(parent context.Context, f *rootFlags) error {
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := setup(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()
	a.watch(ctx)

	srvLog := logger.NewWithConfig("server", log.GetLevel(), f.debug, f.debug, log.TextFormatter)
	srv := server.New(a.eng, os.Stdin, os.Stdout, server.Options{
		MaxLimit:  a.cfg.Server.MaxLimit,
		MinPrefix: a.cfg.Server.MinPrefix,
		MaxPrefix: a.cfg.Server.MaxPrefix,
		Reload:    a.reload,
		Logger:    srvLog,
	})
	showStartupInfo(a.dataDir, a.eng.Stats())

	// Serve blocks on stdin, so a signal has to be able to win the race.
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx) }()
	select {
	case err := <-errc:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		return nil
	}
}

func showStartupInfo(dataDir string, st engine.Stats) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("=========")
	println(" wordmux ")
	println("=========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("data dir: ( %s )", dataDir)
	log.Infof("words: %d, providers: %s", st.Words, strings.Join(st.Providers, ", "))
	log.Info("status: ready")
	println("=========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}

func newReplCmd(f *rootFlags) *cobra.Command {
	var minLen, maxLen int
	var noFilter bool
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Type text and see suggestions, useful for testing and debugging",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := setup(ctx, f)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("prmin") {
				minLen = a.cfg.CLI.DefaultMinLen
			}
			if !cmd.Flags().Changed("prmax") {
				maxLen = a.cfg.CLI.DefaultMaxLen
			}
			if !cmd.Flags().Changed("no-filter") {
				noFilter = a.cfg.CLI.DefaultNoFilter
			}
			h := cli.NewInputHandler(a.eng, os.Stdin, os.Stdout, minLen, maxLen, a.limit(f, a.cfg.CLI.DefaultLimit), noFilter)
			h.SetUser(f.user)
			if err := h.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&minLen, "prmin", 1, "Minimum last-word length for suggestions")
	cmd.Flags().IntVar(&maxLen, "prmax", 60, "Maximum last-word length for suggestions")
	cmd.Flags().BoolVar(&noFilter, "no-filter", false, "Disable input validation (DBG only)")
	return cmd
}

func newLearnCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "learn <file>",
		Short: "Feed a text file to the model, one sentence per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := setup(ctx, f)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := learnFile(ctx, a.eng, f.user, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "learned %d sentences\n", n)
			return nil
		},
	}
}

type learner interface {
	Learn(userID, text string)
}

func learnFile(ctx context.Context, l learner, user, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	n := 0
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		l.Learn(user, line)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read %s: %w", path, err)
	}
	return n, nil
}
