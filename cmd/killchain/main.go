// Package main provides the CLI entrypoint for killchain.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/client"
	"github.com/verte-zerg/killchain/internal/config"
	"github.com/verte-zerg/killchain/internal/engine"
	"github.com/verte-zerg/killchain/internal/generator"
	"github.com/verte-zerg/killchain/internal/model"
	"github.com/verte-zerg/killchain/internal/server"
	"github.com/verte-zerg/killchain/internal/stats"
	"github.com/verte-zerg/killchain/internal/statsui"
	"github.com/verte-zerg/killchain/internal/store"
	"github.com/verte-zerg/killchain/internal/tui"
)

const (
	defaultAPIURL        = "http://localhost:5000/api"
	defaultTimeout       = 5 * time.Second
	defaultFallbackDelay = time.Second
	defaultAddr          = ":5000"
	defaultRate          = 100
	defaultBurst         = 20
	defaultSessionTTL    = 24 * time.Hour
	defaultBoardLimit    = 10
	defaultBoardRecent   = 10

	janitorInterval = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

var (
	playAPIURL        string
	playTimeout       time.Duration
	playFallbackDelay time.Duration
	playSeed          int64
	playLogFile       string
	playOffline       bool

	serveAddr       string
	serveDB         string
	serveContent    string
	serveRate       int
	serveBurst      int
	serveSeed       int64
	serveSessionTTL time.Duration

	boardDB      string
	boardLimit   int
	boardRecent  int
	boardSession string
	boardTUI     bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "killchain",
		Short:         "Cyber kill chain training quiz",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.Flags().StringVar(&playAPIURL, "api-url", defaultAPIURL, "content source base URL")
	rootCmd.Flags().DurationVar(&playTimeout, "timeout", defaultTimeout, "per-request timeout")
	rootCmd.Flags().DurationVar(&playFallbackDelay, "fallback-delay", defaultFallbackDelay, "pause before an offline round replaces a failed request")
	rootCmd.Flags().Int64Var(&playSeed, "seed", 0, "seed for offline simulation (0 = time-seeded)")
	rootCmd.Flags().StringVar(&playLogFile, "log-file", config.DefaultLogPath(), "log file path")
	rootCmd.Flags().BoolVar(&playOffline, "offline", false, "play without a content source")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPhasesCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func loadConfig() (config.FileConfig, error) {
	fileCfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return fileCfg, nil
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "api-url", &playAPIURL, fileCfg.Play.APIURL)
	applyDurationConfig(cmd, "timeout", &playTimeout, fileCfg.Play.Timeout)
	applyDurationConfig(cmd, "fallback-delay", &playFallbackDelay, fileCfg.Play.FallbackDelay)
	applyInt64Config(cmd, "seed", &playSeed, fileCfg.Play.Seed)
	applyStringConfig(cmd, "log-file", &playLogFile, fileCfg.Play.LogFile)
	applyBoolConfig(cmd, "offline", &playOffline, fileCfg.Play.Offline)

	cfg := model.PlayConfig{
		APIURL:        playAPIURL,
		Timeout:       playTimeout,
		FallbackDelay: playFallbackDelay,
		Seed:          playSeed,
		LogFile:       playLogFile,
		Offline:       playOffline,
	}
	if err := validatePlayConfig(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := tea.LogToFile(cfg.LogFile, "killchain")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			logErrf("failed to close log file: %v\n", cerr)
		}
	}()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engineCfg := engine.Config{
		Timeout:       cfg.Timeout,
		FallbackDelay: cfg.FallbackDelay,
		Rand:          rand.New(rand.NewSource(seed)),
		Logger:        logger,
	}
	if !cfg.Offline {
		engineCfg.Source = client.New(cfg.APIURL, cfg.Timeout)
	}
	e := engine.New(engineCfg)
	logger.Info("session started", "session_id", e.SessionID(), "api_url", cfg.APIURL, "offline", cfg.Offline)

	program := tea.NewProgram(tui.NewModel(e), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	e.Shutdown()
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local content server",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&serveDB, "db", config.DefaultDBPath(), "SQLite database path")
	cmd.Flags().StringVar(&serveContent, "content", "", "TOML content pack (default: embedded)")
	cmd.Flags().IntVar(&serveRate, "rate", defaultRate, "requests per minute per session (negative disables)")
	cmd.Flags().IntVar(&serveBurst, "burst", defaultBurst, "request burst per session")
	cmd.Flags().Int64Var(&serveSeed, "seed", 0, "incident picker seed (0 = time-seeded)")
	cmd.Flags().DurationVar(&serveSessionTTL, "session-ttl", defaultSessionTTL, "prune sessions idle longer than this")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	dotenvErr := godotenv.Load()

	fileCfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Serve.Addr)
	applyStringConfig(cmd, "db", &serveDB, fileCfg.Serve.DB)
	applyStringConfig(cmd, "content", &serveContent, fileCfg.Serve.Content)
	applyIntConfig(cmd, "rate", &serveRate, fileCfg.Serve.Rate)
	applyIntConfig(cmd, "burst", &serveBurst, fileCfg.Serve.Burst)
	applyInt64Config(cmd, "seed", &serveSeed, fileCfg.Serve.Seed)
	applyDurationConfig(cmd, "session-ttl", &serveSessionTTL, fileCfg.Serve.SessionTTL)

	cfg := model.ServeConfig{
		Addr:          serveAddr,
		DBPath:        serveDB,
		ContentPath:   serveContent,
		RatePerMinute: serveRate,
		Burst:         serveBurst,
		Seed:          serveSeed,
		SessionTTL:    serveSessionTTL,
	}
	if err := validateServeConfig(cfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if dotenvErr != nil {
		logger.Info("no .env file loaded", "reason", dotenvErr.Error())
	}

	content, err := catalog.LoadContent(cfg.ContentPath)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	srv := server.New(server.Config{
		Content:       content,
		Store:         st,
		Generator:     generator.New(cfg.Seed),
		RatePerMinute: cfg.RatePerMinute,
		Burst:         cfg.Burst,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go srv.Janitor(ctx, janitorInterval, cfg.SessionTTL)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("content server listening", "addr", cfg.Addr, "db", cfg.DBPath, "incidents", len(content.Incidents))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func newPhasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phases",
		Short: "List the kill chain phases",
		Args:  cobra.NoArgs,
		RunE:  runPhasesCmd,
	}
}

func runPhasesCmd(cmd *cobra.Command, _ []string) error {
	for i, p := range catalog.Phases() {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d. %s %s (%s): %s\n", i+1, p.Icon, p.Name, p.ID, p.Description); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the content server leaderboard",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
	cmd.Flags().StringVar(&boardDB, "db", config.DefaultDBPath(), "SQLite database path")
	cmd.Flags().IntVar(&boardLimit, "limit", defaultBoardLimit, "number of sessions")
	cmd.Flags().IntVar(&boardRecent, "recent", defaultBoardRecent, "rounds shown in the sparkline")
	cmd.Flags().StringVar(&boardSession, "session", "", "session id filter")
	cmd.Flags().BoolVar(&boardTUI, "tui", false, "open the interactive browser")
	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "db", &boardDB, fileCfg.Serve.DB)

	cfg := model.BoardConfig{Limit: boardLimit, Query: boardSession, Recent: boardRecent}
	if cfg.Limit <= 0 {
		return fmt.Errorf("--limit must be > 0")
	}
	if cfg.Recent < 0 {
		return fmt.Errorf("--recent must be >= 0")
	}

	st, err := store.Open(boardDB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if boardTUI {
		program := tea.NewProgram(statsui.NewModel(st, cfg), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run leaderboard TUI: %w", err)
		}
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sessions, err := st.Leaderboard(ctx, cfg.Limit)
	if err != nil {
		return fmt.Errorf("failed to load leaderboard: %w", err)
	}
	query := strings.ToLower(strings.TrimSpace(cfg.Query))
	entries := make([]model.LeaderboardEntry, 0, len(sessions))
	for i, s := range sessions {
		if query != "" && !strings.Contains(strings.ToLower(s.SessionID), query) {
			continue
		}
		var recent []int
		if cfg.Recent > 0 {
			recent, err = st.RecentPoints(ctx, s.SessionID, cfg.Recent)
			if err != nil {
				return fmt.Errorf("failed to load recent points: %w", err)
			}
		}
		entries = append(entries, model.LeaderboardEntry{Rank: i + 1, Session: s, RecentPoints: recent})
	}
	if err := stats.RenderLeaderboard(cmd.OutOrStdout(), entries, 0); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target, value *time.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# killchain configuration
# Uncomment a value to enable it. CLI flags override environment
# variables (KILLCHAIN_*), which override config values.

[play]
# api-url = %q   # Content source base URL
# timeout = %q              # Per-request timeout
# fallback-delay = %q       # Pause before an offline round
# seed = 0                      # Offline simulation seed (0 = time-seeded)
# log-file = ""                 # Log file (default under $XDG_DATA_HOME)
# offline = false               # Play without a content source

[serve]
# addr = %q                # Listen address
# db = ""                       # SQLite path (default under $XDG_DATA_HOME)
# content = ""                  # TOML content pack (default: embedded)
# rate = %d                    # Requests per minute per session
# burst = %d                    # Request burst per session
# seed = 0                      # Incident picker seed
# session-ttl = %q            # Prune sessions idle longer than this
`,
		defaultAPIURL,
		defaultTimeout.String(),
		defaultFallbackDelay.String(),
		defaultAddr,
		defaultRate,
		defaultBurst,
		defaultSessionTTL.String(),
	)
}

func validatePlayConfig(cfg model.PlayConfig) error {
	if !cfg.Offline && strings.TrimSpace(cfg.APIURL) == "" {
		return fmt.Errorf("--api-url must not be empty")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	if cfg.FallbackDelay < 0 {
		return fmt.Errorf("--fallback-delay must be >= 0")
	}
	if cfg.LogFile == "" {
		return fmt.Errorf("--log-file must not be empty")
	}
	return nil
}

func validateServeConfig(cfg model.ServeConfig) error {
	if cfg.Addr == "" {
		return fmt.Errorf("--addr must not be empty")
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("--db must not be empty")
	}
	if cfg.RatePerMinute == 0 {
		return fmt.Errorf("--rate must not be 0 (use a negative value to disable)")
	}
	if cfg.Burst <= 0 {
		return fmt.Errorf("--burst must be > 0")
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("--session-ttl must be > 0")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
