package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oukeidos/cattlelens/internal/auth"
	"github.com/oukeidos/cattlelens/internal/batch"
	"github.com/oukeidos/cattlelens/internal/cache"
	"github.com/oukeidos/cattlelens/internal/cleanup"
	"github.com/oukeidos/cattlelens/internal/config"
	"github.com/oukeidos/cattlelens/internal/files"
	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/oukeidos/cattlelens/internal/logger"
	"github.com/oukeidos/cattlelens/internal/metadata"
	"github.com/rivo/uniseg"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	isTerminal   = term.IsTerminal
	promptForKey = auth.PromptForAPIKey
	loadDotenv   = func(path string) (auth.Source, error) { return auth.LoadDotenv(path) }
	newClient    = func(cfg gemini.Config) (gemini.Analyzer, error) { return gemini.NewClient(cfg) }
	runContext   = signalContext

	keychain   auth.Source = auth.KeychainSource{}
	processEnv auth.Source = auth.EnvSource{}
)

// clientOptions are the flags shared by analyze and serve.
type clientOptions struct {
	configPath        string
	model             string
	endpoint          string
	task              string
	query             string
	maxAttempts       int
	initialBackoff    time.Duration
	backoffMultiplier float64
	timeout           time.Duration
	maxImages         int
	cachePath         string
	demo              bool
	allowEnv          bool
	envOnly           bool
	envFile           string
	logFilePath       string
	debug             bool
}

func addClientFlags(cmd *cobra.Command, opts *clientOptions) {
	d := config.Default()
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to a config file (yaml, toml or json)")
	f.StringVar(&opts.model, "model", d.Model, "Gemini model name")
	f.StringVar(&opts.endpoint, "endpoint", "", "generateContent URL; {model} is replaced by the model name")
	f.StringVar(&opts.task, "task", d.Task, "Analysis task (see 'cattlelens tasks')")
	f.StringVar(&opts.query, "query", d.UserQuery, "User query sent with each image")
	f.IntVar(&opts.maxAttempts, "max-attempts", d.MaxAttempts, "Maximum HTTP attempts per image (1-10)")
	f.DurationVar(&opts.initialBackoff, "initial-backoff", d.InitialBackoff, "Wait before the first retry")
	f.Float64Var(&opts.backoffMultiplier, "backoff-multiplier", d.BackoffMultiplier, "Growth factor between retries")
	f.DurationVar(&opts.timeout, "timeout", d.Timeout, "Timeout for a single HTTP attempt")
	f.IntVar(&opts.maxImages, "max-images", d.MaxImages, "Maximum images per run (1-10)")
	f.StringVar(&opts.cachePath, "cache", "", "Path to a SQLite cache of successful analyses")
	f.BoolVar(&opts.demo, "demo", false, "Simulate results without calling the API")
	f.BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading GEMINI_API_KEY and GEMINI_API_URL from the environment")
	f.BoolVar(&opts.envOnly, "env-only", false, "Use only the environment (and --env-file) for the API key")
	f.StringVar(&opts.envFile, "env-file", "", "Read GEMINI_API_KEY and GEMINI_API_URL from a .env file")
	f.StringVar(&opts.logFilePath, "log-file", "", "Path to save machine-readable JSONL logs")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
}

// loadSettings layers defaults, the config file, CATTLELENS_* variables and
// explicitly set flags, in that order.
func loadSettings(cmd *cobra.Command, opts *clientOptions) (config.Settings, error) {
	s, err := config.Load(opts.configPath)
	if err != nil {
		return config.Settings{}, err
	}
	f := cmd.Flags()
	if f.Changed("model") {
		s.Model = opts.model
	}
	if f.Changed("endpoint") {
		s.Endpoint = opts.endpoint
	}
	if f.Changed("task") {
		s.Task = opts.task
	}
	if f.Changed("query") {
		s.UserQuery = opts.query
	}
	if f.Changed("max-attempts") {
		s.MaxAttempts = opts.maxAttempts
	}
	if f.Changed("initial-backoff") {
		s.InitialBackoff = opts.initialBackoff
	}
	if f.Changed("backoff-multiplier") {
		s.BackoffMultiplier = opts.backoffMultiplier
	}
	if f.Changed("timeout") {
		s.Timeout = opts.timeout
	}
	if f.Changed("max-images") {
		s.MaxImages = opts.maxImages
	}
	if f.Changed("cache") {
		s.CachePath = opts.cachePath
	}
	if f.Changed("env-file") {
		s.EnvFile = opts.envFile
	}
	if opts.debug {
		s.LogLevel = "debug"
	}

	s, notes := s.Normalize()
	for _, n := range notes {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", n)
	}
	if err := s.Validate(); err != nil {
		return config.Settings{}, err
	}
	return s, nil
}

func setupLogging(levelName, logFilePath string) error {
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return err
	}
	var logFileW io.Writer
	if logFilePath != "" {
		if err := files.RejectSymlinkPath(logFilePath); err != nil {
			return err
		}
		f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register("log file", f.Close)
		logFileW = f
	}
	logger.Init(level, logFileW)
	return nil
}

// envSources are consulted after the keychain. An env file is explicit
// opt-in; the process environment needs --allow-env.
func envSources(allowEnv bool, envFile string) (auth.Chain, error) {
	var chain auth.Chain
	if allowEnv {
		chain = append(chain, processEnv)
	}
	if envFile != "" {
		src, err := loadDotenv(envFile)
		if err != nil {
			return nil, err
		}
		chain = append(chain, src)
	}
	return chain, nil
}

// resolveAPIKey finds the Gemini key and returns the non-keychain sources so
// the caller can also read an endpoint override from them.
func resolveAPIKey(allowEnv, envOnly bool, envFile string) (string, string, auth.Chain, error) {
	if envOnly {
		allowEnv = true
	}
	extra, err := envSources(allowEnv, envFile)
	if err != nil {
		return "", "", nil, err
	}
	if envOnly {
		if key, from := auth.ResolveKey(extra); key != "" {
			return key, from, extra, nil
		}
		return "", "", nil, fmt.Errorf("env-only set but %s is not set", auth.KeyVar)
	}

	if key, from := auth.ResolveKey(keychain); key != "" {
		return key, from, extra, nil
	}
	if key, from := auth.ResolveKey(extra); key != "" {
		return key, from, extra, nil
	}

	if isTerminal(int(os.Stdin.Fd())) {
		key, err := promptForKey("Gemini API Key (press Enter to skip): ")
		if err != nil {
			return "", "", nil, fmt.Errorf("error reading API key: %w", err)
		}
		if strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), "Terminal Prompt", extra, nil
		}
	}

	if !isTerminal(int(os.Stdin.Fd())) {
		return "", "", nil, fmt.Errorf("no API key available (non-interactive shell); run 'cattlelens env setup' or use --allow-env")
	}
	if allowEnv {
		return "", "", nil, fmt.Errorf("API key is required; not found in keychain or environment")
	}
	return "", "", nil, fmt.Errorf("API key is required; not found in keychain (environment disabled by default; use --allow-env)")
}

// buildAnalyzer returns the live client (or the demo simulator) wrapped in
// the outcome cache when one is configured.
func buildAnalyzer(s config.Settings, opts *clientOptions) (gemini.Analyzer, error) {
	var analyzer gemini.Analyzer
	if opts.demo {
		logger.Info("Demo mode: results are simulated")
		analyzer = batch.NewDemoAnalyzer(s.Task, uint64(time.Now().UnixNano()))
	} else {
		key, source, extra, err := resolveAPIKey(opts.allowEnv, opts.envOnly, s.EnvFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Using API Key", "service", "gemini", "source", source)
		cfg := gemini.Config{APIKey: key, Endpoint: s.Endpoint}
		if len(extra) > 0 {
			cfg.Source = extra
		}
		analyzer, err = newClient(cfg)
		if err != nil {
			return nil, err
		}
	}

	if s.CachePath == "" {
		return analyzer, nil
	}
	store, err := cache.Open(s.CachePath)
	if err != nil {
		return nil, err
	}
	cleanup.Register("cache", store.Close)
	logger.Info("Using analysis cache", "path", s.CachePath)
	return cache.NewAnalyzer(analyzer, store), nil
}

// preview collapses whitespace and cuts s to limit grapheme clusters.
func preview(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if uniseg.GraphemeClusterCount(s) <= limit {
		return s
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for n := 0; n < limit && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	return b.String() + "..."
}

func printUsageStats(w io.Writer, r *batch.Report) {
	fmt.Fprintln(w, "\n--- Execution Stats ---")
	fmt.Fprintf(w, "Run: %s\n", r.RunID)
	fmt.Fprintf(w, "Time: %s\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Model: %s\n", r.Model)
	fmt.Fprintf(w, "Images: %d (succeeded %d, failed %d, cached %d)\n", len(r.Results), r.Succeeded, r.Failed, r.Cached)
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped: %s\n", strings.Join(r.Skipped, ", "))
	}
	if r.TotalTokens > 0 {
		low, high := metadata.CostRange(r.Model, r.TotalTokens)
		fmt.Fprintf(w, "Tokens: Total=%d\n", r.TotalTokens)
		fmt.Fprintf(w, "Estimated Cost: $%.5f - $%.5f\n", low, high)
	}
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Cancellation requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
