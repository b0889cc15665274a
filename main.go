package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seclab/auth"
	"seclab/config"
	"seclab/crypto"
	"seclab/db"
	"seclab/handlers"
	"seclab/i18n"
	"seclab/logging"
	"seclab/store"
	"seclab/variant"

	"golang.org/x/term"
)

type flags struct {
	config  string
	variant string
	port    int
	db      string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "config.json", "path to the JSON config file")
	flag.StringVar(&f.variant, "variant", "", "behaviour variant: good or bad")
	flag.IntVar(&f.port, "port", 0, "listen port")
	flag.StringVar(&f.db, "db", "", "SQLite database path")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [serve|hash-password|init-db]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(f)
	if err != nil {
		slog.Error("Error loading config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		slog.Error("Error building logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	switch cmd := flag.Arg(0); cmd {
	case "", "serve":
		err = serve(cfg, logger)
	case "hash-password":
		err = hashPassword(cfg)
	case "init-db":
		err = initDB(cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, then lets command-line flags override it.
func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.config)
	if err != nil {
		return nil, err
	}
	if f.variant != "" {
		mode, err := variant.ParseMode(f.variant)
		if err != nil {
			return nil, err
		}
		cfg.Variant = mode
	}
	if f.port != 0 {
		cfg.ListenPort = f.port
	}
	if f.db != "" {
		cfg.DatabasePath = f.db
	}
	return cfg, cfg.Validate()
}

func newPolicy(cfg *config.Config) (variant.Policy, error) {
	hasher, err := crypto.NewHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return variant.New(cfg.Variant, variant.Options{
		SessionKey:     cfg.SessionKey,
		SessionTTL:     cfg.SessionTTL.Duration,
		Hasher:         hasher,
		SecureCookies:  cfg.SecureCookies,
		TrustedOrigins: cfg.TrustedOrigins,
	}), nil
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := newPolicy(cfg)
	if err != nil {
		return err
	}
	if policy.Mode() == variant.Bad {
		logger.Warn("Running the INSECURE variant; never expose it beyond a lab network")
	}

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	conn, err := db.Open(cfg.DBPath())
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Seed(ctx, conn, policy.Hasher()); err != nil {
		return err
	}

	users := store.NewUsers(conn, policy, policy.Hasher())
	issuer, err := auth.NewIssuer(users, store.NewSessions(conn), policy.IssuerOptions())
	if err != nil {
		return err
	}

	srv := handlers.NewServer(handlers.Deps{
		AppName: cfg.AppName,
		Policy:  policy,
		Issuer:  issuer,
		Users:   users,
		Notes:   store.NewNotes(conn, policy.Sealer()),
		Tokens:  policy.APITokens(crypto.SubKey(cfg.SessionKey, "api"), issuer, users),
		Catalog: catalog,
		Logger:  logger,
	})

	if interval := cfg.SweepInterval.Duration; interval > 0 {
		go sweep(ctx, issuer, interval, logger)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", httpServer.Addr, "app", cfg.AppName, "variant", policy.Mode())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// sweep deletes expired sessions every interval until ctx is done.
func sweep(ctx context.Context, issuer *auth.Issuer, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := issuer.Sweep(ctx)
			if err != nil {
				logger.Error("Session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("Swept expired sessions", "count", n)
			}
		}
	}
}

// hashPassword prints the stored form of a password read from the terminal,
// as the configured variant would store it.
func hashPassword(cfg *config.Config) error {
	policy, err := newPolicy(cfg)
	if err != nil {
		return err
	}

	fmt.Print("Enter password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	hashed, err := policy.Hasher().Hash(string(bytePassword))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	fmt.Printf("Hashed password: %s\n", hashed)
	return nil
}

func initDB(cfg *config.Config) error {
	policy, err := newPolicy(cfg)
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.DBPath())
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Seed(context.Background(), conn, policy.Hasher()); err != nil {
		return err
	}
	slog.Info("Database ready", "path", cfg.DBPath(), "variant", policy.Mode())
	return nil
}
