package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"kanbanBackend/internal/auth"
	"kanbanBackend/internal/config"
	"kanbanBackend/internal/db"
	grpcserver "kanbanBackend/internal/grpc"
	"kanbanBackend/internal/httpserver"
	"kanbanBackend/internal/service"
	"kanbanBackend/repository"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	var (
		httpAddr = flags.String("http", "", "HTTP listen address (overrides HTTP_ADDRESS)")
		grpcAddr = flags.String("grpc", "", "gRPC health listen address (overrides GRPC_ADDRESS)")
		dbPath   = flags.String("db", "", "SQLite database path (overrides DB_PATH)")
		policy   = flags.String("policy", "", "YAML route policy file (overrides ROUTE_POLICY_FILE)")
		envFile  = flags.String("env-file", "", "dotenv file to load before reading the environment")
		dev      = flags.Bool("dev", false, "use development defaults for JWT_SECRET and API_KEY")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *envFile != "" {
		if err := os.Setenv("ENV_FILE", *envFile); err != nil {
			return err
		}
	}

	load := config.Load
	if *dev {
		load = config.LoadWithDefaults
	}
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	overrideString(&cfg.HTTP.Address, *httpAddr)
	overrideString(&cfg.GRPC.Address, *grpcAddr)
	overrideString(&cfg.Database.Path, *dbPath)
	overrideString(&cfg.Policy.File, *policy)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.Level}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.String())

	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("close db", "err", err)
		}
	}()

	table, err := auth.LoadPolicy(cfg.Policy.File)
	if err != nil {
		return err
	}
	for _, k := range table.Keys() {
		p := table[k]
		logger.Debug("route policy", "route", k, "api_key", p.APIKey, "token", p.Token, "owner_only", p.OwnerOnly)
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: cfg.Auth.JWTSecret, TTL: cfg.Auth.TokenTTL})
	if err != nil {
		return err
	}
	keys, err := auth.NewAPIKeyChecker(cfg.Auth.APIKey)
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(d)
	cards := repository.NewCardRepository(d)

	handler := httpserver.NewHandler(httpserver.Deps{
		Auth:           service.NewAuthService(users, tokens, cfg.Auth.BcryptCost, logger),
		Cards:          service.NewCardService(cards, logger),
		Gate:           auth.NewGate(keys, tokens, table, logger),
		Logger:         logger,
		LoginPerSecond: cfg.RateLimit.LoginPerSecond,
		LoginBurst:     cfg.RateLimit.LoginBurst,
	})
	stopHTTP, addr, err := httpserver.StartHTTP(cfg.HTTP.Address, handler, logger)
	if err != nil {
		return fmt.Errorf("start http: %w", err)
	}
	logger.Info("http server listening", "addr", addr)

	stopGRPC := func(context.Context) error { return nil }
	if cfg.GRPC.Address != "" {
		var gaddr string
		stopGRPC, gaddr, err = grpcserver.StartGRPC(grpcserver.Options{Address: cfg.GRPC.Address, Store: d, Logger: logger})
		if err != nil {
			return fmt.Errorf("start grpc: %w", err)
		}
		logger.Info("grpc health listening", "addr", gaddr)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stopHTTP(ctx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	if err := stopGRPC(ctx); err != nil {
		logger.Error("grpc shutdown", "err", err)
	}
	return nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
