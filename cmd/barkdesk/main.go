package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/barkdesk/barkdesk/internal/console"
	"github.com/barkdesk/barkdesk/internal/cron"
	"github.com/barkdesk/barkdesk/internal/store/gormstore"
	"github.com/barkdesk/barkdesk/internal/store/pgstore"
	"github.com/barkdesk/barkdesk/pkg/bark"
	"github.com/barkdesk/barkdesk/pkg/charges"
	"github.com/barkdesk/barkdesk/pkg/pos"
	"github.com/barkdesk/barkdesk/pkg/wallet"
)

const (
	flagDaemonURL             = "daemon-url"
	flagDaemonTimeout         = "daemon-timeout"
	flagDatabaseURL           = "database-url"
	flagListenAddr            = "listen-addr"
	flagAllowedOrigins        = "allowed-origins"
	flagReconcileInterval     = "reconcile-interval"
	configKeyDaemonURL        = "bark_daemon_url"
	configKeyDaemonTimeout    = "bark_daemon_timeout"
	configKeyDatabaseURL      = "database_url"
	configKeyListenAddr       = "listen_addr"
	configKeyAllowedOrigins   = "allowed_origins"
	configKeyReconcile        = "reconcile_interval"
	defaultDaemonURL          = "http://localhost:3000"
	defaultDatabaseURL        = "sqlite:///tmp/barkdesk.db"
	defaultListenAddr         = ":9090"
	defaultDaemonTimeout      = 15 * time.Second
	defaultReconcileInterval  = 30 * time.Second
	defaultProvisionKeyActive = true
)

type runtimeConfig struct {
	DaemonURL         string
	DaemonTimeout     time.Duration
	DatabaseURL       string
	ListenAddr        string
	AllowedOrigins    []string
	ReconcileInterval time.Duration
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "barkdesk: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "barkdesk",
		Short:         "Web console, POS and charges API for a bark wallet daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.PersistentFlags().String(flagDaemonURL, defaultDaemonURL, "bark daemon base URL")
	cmd.PersistentFlags().Duration(flagDaemonTimeout, defaultDaemonTimeout, "bark daemon request timeout")
	cmd.PersistentFlags().String(flagDatabaseURL, defaultDatabaseURL, "database connection string (sqlite:// or postgres://)")
	cmd.PersistentFlags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.PersistentFlags().String(flagAllowedOrigins, "", "comma-delimited CORS origins")
	cmd.PersistentFlags().Duration(flagReconcileInterval, defaultReconcileInterval, "webhook reconciliation interval")

	cmd.AddCommand(newAPIKeyCommand(cfg))

	return cmd
}

func newAPIKeyCommand(cfg *runtimeConfig) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Provision a merchant API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openStore(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database open: %w", err)
			}
			defer func() { _ = cleanup() }()

			key := uuid.NewString()
			if err := store.InsertAPIKey(cmd.Context(), key, label, defaultProvisionKeyActive); err != nil {
				return fmt.Errorf("insert api key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "human-readable key label")
	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDaemonURL:      "BARK_DAEMON_URL",
		configKeyDaemonTimeout:  "BARK_DAEMON_TIMEOUT",
		configKeyDatabaseURL:    "DATABASE_URL",
		configKeyListenAddr:     "LISTEN_ADDR",
		configKeyAllowedOrigins: "ALLOWED_ORIGINS",
		configKeyReconcile:      "RECONCILE_INTERVAL",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flags := map[string]string{
		configKeyDaemonURL:      flagDaemonURL,
		configKeyDaemonTimeout:  flagDaemonTimeout,
		configKeyDatabaseURL:    flagDatabaseURL,
		configKeyListenAddr:     flagListenAddr,
		configKeyAllowedOrigins: flagAllowedOrigins,
		configKeyReconcile:      flagReconcileInterval,
	}
	for key, flag := range flags {
		if err := viper.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DaemonURL = viper.GetString(configKeyDaemonURL)
	if cfg.DaemonURL == "" {
		cfg.DaemonURL = defaultDaemonURL
	}
	cfg.DaemonTimeout = viper.GetDuration(configKeyDaemonTimeout)
	if cfg.DaemonTimeout <= 0 {
		cfg.DaemonTimeout = defaultDaemonTimeout
	}
	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AllowedOrigins = console.ParseAllowedOrigins(viper.GetString(configKeyAllowedOrigins))
	cfg.ReconcileInterval = viper.GetDuration(configKeyReconcile)
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := bark.NewClient(bark.Config{
		BaseURL: cfg.DaemonURL,
		Timeout: cfg.DaemonTimeout,
	}, bark.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("bark client init: %w", err)
	}

	store, cleanup, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	walletService, err := wallet.NewService(client, logger)
	if err != nil {
		return fmt.Errorf("wallet service init: %w", err)
	}

	chargeService, err := charges.NewService(
		store,
		charges.NewBarkGateway(client),
		charges.WithLogger(logger),
		charges.WithWebhookSender(charges.NewHTTPWebhookSender()),
	)
	if err != nil {
		return fmt.Errorf("charge service init: %w", err)
	}

	posManager, err := pos.NewManager(pos.NewBarkGateway(client), logger)
	if err != nil {
		return fmt.Errorf("pos manager init: %w", err)
	}
	defer posManager.Close()

	runner, err := cron.NewRunner(chargeService, cfg.ReconcileInterval, logger)
	if err != nil {
		return fmt.Errorf("cron runner init: %w", err)
	}
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("cron runner start: %w", err)
	}
	defer runner.Stop()

	return console.Run(ctx, console.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
	}, console.Deps{
		Wallet:  walletService,
		Charges: chargeService,
		POS:     posManager,
		Logger:  logger,
	})
}

// chargeStore is the persistence surface the command needs beyond the
// service contract: key provisioning for the apikey subcommand.
type chargeStore interface {
	charges.Store
	InsertAPIKey(ctx context.Context, key string, label string, active bool) error
}

// openStore picks the storage backend by DSN scheme: postgres URLs get
// the pgx-native store, everything else runs on sqlite through gorm.
// Schema migration runs before the store is handed out.
func openStore(ctx context.Context, dsn string) (chargeStore, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	switch driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		store := pgstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		cleanup := func() error {
			pool.Close()
			return nil
		}
		return store, cleanup, nil
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		store := gormstore.New(db.WithContext(ctx))
		if err := store.Migrate(); err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return store, sqlDB.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "barkdesk.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
