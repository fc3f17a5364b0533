// Package main runs the vesting HTTP API.
//
// Storage is PostgreSQL (or in-memory with --use-memory). Claim events are
// mirrored to ClickHouse when --clickhouse-dsn is set. --clock=chain reads the
// vesting clock from the latest block time over --rpc-endpoint.
//
// --verify-accounts checks source and receiving token accounts against chain
// state while balances still move in the local token-account store. That mix
// is a development setup against a real cluster and requires --dev-faucet.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"solana-vesting/internal/api"
	"solana-vesting/internal/clock"
	"solana-vesting/internal/idhash"
	"solana-vesting/internal/ledger"
	"solana-vesting/internal/solana"
	"solana-vesting/internal/storage"
	chstore "solana-vesting/internal/storage/clickhouse"
	"solana-vesting/internal/storage/memory"
	"solana-vesting/internal/storage/migrations"
	pgstore "solana-vesting/internal/storage/postgres"
	"solana-vesting/internal/vesting"
)

const shutdownTimeout = 30 * time.Second

type config struct {
	addr           string
	postgresDSN    string
	clickhouseDSN  string
	rpcEndpoint    string
	commitment     string
	programID      string
	clockSource    string
	useMemory      bool
	migrate        bool
	devFaucet      bool
	verifyAccounts bool
	logLevel       string
	logJSON        bool
}

func main() {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := parseConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
	logger.Info("shutdown complete")
}

// parseConfig reads flags from args, with environment variables as defaults.
func parseConfig(args []string) (*config, error) {
	cfg := &config{}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.addr, "addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.postgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	fs.StringVar(&cfg.clickhouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, enables claim analytics)")
	fs.StringVar(&cfg.rpcEndpoint, "rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint (needed by --clock=chain and --verify-accounts)")
	fs.StringVar(&cfg.commitment, "commitment", envOr("SOLANA_COMMITMENT", string(solana.DefaultCommitment)), "RPC commitment: processed, confirmed or finalized")
	fs.StringVar(&cfg.programID, "program-id", envOr("VESTING_PROGRAM_ID", idhash.VestingProgramID), "Program id schedule addresses are derived under")
	fs.StringVar(&cfg.clockSource, "clock", envOr("CLOCK_SOURCE", "system"), "Vesting clock: system or chain")
	fs.BoolVar(&cfg.useMemory, "use-memory", envBool("USE_MEMORY"), "Use in-memory storage instead of PostgreSQL")
	fs.BoolVar(&cfg.migrate, "migrate", envBool("RUN_MIGRATIONS"), "Apply embedded migrations at startup")
	fs.BoolVar(&cfg.devFaucet, "dev-faucet", envBool("DEV_FAUCET"), "Enable POST /v1/dev/token-accounts")
	fs.BoolVar(&cfg.verifyAccounts, "verify-accounts", envBool("VERIFY_TOKEN_ACCOUNTS"),
		"Check token accounts on chain; transfers still settle locally (dev only, requires --dev-faucet)")
	fs.StringVar(&cfg.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level")
	fs.BoolVar(&cfg.logJSON, "log-json", envBool("LOG_JSON"), "Log in JSON format")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) validate() error {
	if !c.useMemory && c.postgresDSN == "" {
		return errors.New("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if c.clockSource != "system" && c.clockSource != "chain" {
		return fmt.Errorf("--clock must be system or chain, got %q", c.clockSource)
	}
	switch solana.Commitment(c.commitment) {
	case solana.CommitmentProcessed, solana.CommitmentConfirmed, solana.CommitmentFinalized:
	default:
		return fmt.Errorf("--commitment must be processed, confirmed or finalized, got %q", c.commitment)
	}
	if c.clockSource == "chain" && c.rpcEndpoint == "" {
		return errors.New("--clock=chain requires --rpc-endpoint")
	}
	if c.verifyAccounts && c.rpcEndpoint == "" {
		return errors.New("--verify-accounts requires --rpc-endpoint")
	}
	if c.verifyAccounts && !c.devFaucet {
		return errors.New("--verify-accounts settles transfers in the local ledger and requires --dev-faucet")
	}
	return nil
}

func newLogger(cfg *config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.logJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	logger.SetLevel(level)
	return logger, nil
}

// run serves the API until SIGINT/SIGTERM. Every opened resource is closed before it returns.
func run(cfg *config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, analytics, cleanup, err := createStores(ctx, cfg.postgresDSN, cfg.clickhouseDSN, cfg.useMemory, cfg.migrate, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	server := api.New(api.Config{
		Engine:    vesting.NewEngine(engineOptions(cfg, backend, analytics, logger)),
		DevFaucet: cfg.devFaucet,
		Logger:    logger.WithField("component", "api"),
	})
	if cfg.devFaucet {
		logger.Warn("dev faucet enabled: token accounts can be opened without authorization")
	}

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(cfg.addr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	done := make(chan error, 1)
	go func() {
		done <- server.Shutdown()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("graceful shutdown timed out after %s", shutdownTimeout)
	}
	return <-listenErr
}

// engineOptions wires the clock and ledger selected by cfg.
func engineOptions(cfg *config, backend storage.Transactor, analytics storage.ClaimAnalyticsStore, logger logrus.FieldLogger) vesting.Options {
	opts := vesting.Options{
		Transactor: backend,
		ProgramID:  cfg.programID,
		Analytics:  analytics,
		Logger:     logger.WithField("component", "vesting"),
	}
	if cfg.rpcEndpoint == "" {
		return opts
	}

	rpc := solana.NewHTTPClient(cfg.rpcEndpoint, solana.WithCommitment(solana.Commitment(cfg.commitment)))
	entry := logger.WithFields(logrus.Fields{
		"endpoint":   cfg.rpcEndpoint,
		"commitment": cfg.commitment,
	})
	if cfg.clockSource == "chain" {
		opts.Clock = clock.NewChain(rpc)
		entry.Info("vesting clock follows chain block time")
	}
	if cfg.verifyAccounts {
		opts.Ledger = func(accounts storage.TokenAccountStore) ledger.TokenLedger {
			return ledger.NewChainVerified(rpc, ledger.NewLocal(accounts))
		}
		entry.Warn("token accounts verified on chain; balances settle in the local ledger")
	}
	return opts
}

// createStores opens the transactional backend and the optional analytics mirror.
// On error everything opened so far is already closed.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool, logger logrus.FieldLogger) (storage.Transactor, storage.ClaimAnalyticsStore, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var backend storage.Transactor

	if useMemory {
		backend = memory.NewBackend()
		logger.Info("using in-memory storage")
	} else {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				cleanup()
				return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		backend = pgstore.NewBackend(pool)
	}

	if clickhouseDSN == "" {
		return backend, nil, cleanup, nil
	}

	var (
		conn *chstore.Conn
		err  error
	)
	if migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	} else {
		conn, err = chstore.NewConn(ctx, clickhouseDSN)
	}
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	closers = append(closers, func() { conn.Close() })
	logger.Info("claim analytics enabled")

	return backend, chstore.NewClaimAnalyticsStore(conn), cleanup, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
