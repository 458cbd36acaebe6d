package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/sejem/internal/api"
	"github.com/erazemk/sejem/internal/db"
	"github.com/erazemk/sejem/internal/model"
	"github.com/erazemk/sejem/internal/store"
)

func cmdSandbox(ctx context.Context, args []string) error {
	fs, common := newFlagSet("sandbox", "", `  -d, -db <path>      sandbox database (default: sandbox.sqlite3)
  -a, -addr <addr>    listen address (default: localhost:8090)
  -u, -user <name>    demo account created on first run (default: demo)
`)
	var dbPath, addr, demoUser string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")
	fs.StringVar(&demoUser, "user", "demo", "")
	fs.StringVar(&demoUser, "u", "demo", "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	common.daemon = true
	cfg, cleanup, err := common.resolve(fs)
	if err != nil {
		return err
	}
	defer cleanup()
	if dbPath != "" {
		cfg.Sandbox.DBPath = dbPath
	}
	if addr != "" {
		cfg.Sandbox.Addr = addr
	}

	// Seed a demo account if the database doesn't exist yet.
	if _, err := os.Stat(cfg.Sandbox.DBPath); errors.Is(err, os.ErrNotExist) {
		password, err := initSandbox(ctx, cfg.Sandbox.DBPath, demoUser, cfg.Sandbox.Balance())
		if err != nil {
			return fmt.Errorf("initializing sandbox: %w", err)
		}
		printInitResult(cfg.Sandbox.DBPath, demoUser, password, cfg.Sandbox.Balance())
		fmt.Println()
	}

	database, err := db.Open(cfg.Sandbox.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.EnsureSandboxSchema(database); err != nil {
		return fmt.Errorf("ensuring sandbox schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.Sandbox.DBPath)

	secret, err := store.SandboxSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}

	router := api.NewRouter(database, secret, cfg.Sandbox.Balance())
	return listenAndServe(cfg.Sandbox.Addr, api.LoggingMiddleware(router))
}

// initSandbox creates a new sandbox database with one demo account and
// returns its password. The file is removed if any step fails.
func initSandbox(ctx context.Context, path, username string, balance model.Amount) (string, error) {
	database, err := db.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (string, error) {
		database.Close()
		os.Remove(path)
		return "", err
	}

	if err := db.EnsureSandboxSchema(database); err != nil {
		return fail(fmt.Errorf("ensuring schema: %w", err))
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}
	if err := createDemoAccount(ctx, database, username, password, balance); err != nil {
		return fail(err)
	}

	return password, database.Close()
}

func createDemoAccount(ctx context.Context, database *sql.DB, username, password string, balance model.Amount) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	email := username + "@sandbox.local"
	if _, err := store.CreateAccount(ctx, database, username, email, "", string(hash), balance); err != nil {
		return fmt.Errorf("creating demo account: %w", err)
	}
	return nil
}

// printInitResult prints the sandbox initialization result to stdout.
func printInitResult(dbPath, username, password string, balance model.Amount) {
	fmt.Printf("Sandbox database created: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Demo account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Printf("  Balance:  %s\n", balance.Dollars())
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
