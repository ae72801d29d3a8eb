// cmd/dbtools/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/oche/internal/api/auth"
	"github.com/codr1/oche/internal/api/authz"
	"github.com/codr1/oche/internal/config"
	"github.com/codr1/oche/internal/db"
	"github.com/codr1/oche/internal/store"
)

const minAdminPasswordLength = 12

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: dbtools [-config path] <command> [flags]

Commands:
  up                                    apply pending migrations
  down                                  roll back the latest migration
  version                               print the schema version
  create-admin -email E -name N         create an admin, or promote an existing user
                                        (password read from OCHE_ADMIN_PASSWORD)
`)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := flag.String("config", "config/app.yaml", "path to the yaml config file")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadDatabaseConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	switch command {
	case "up", "down", "version":
		err = migrateCommand(cfg, command)
	case "create-admin":
		err = createAdmin(cfg, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Command failed")
	}
}

// loadDatabaseConfig only needs the database block, so secrets the server
// requires are not enforced here.
func loadDatabaseConfig(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return config.Parse(data)
}

func migrateCommand(cfg *config.Config, command string) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Filename), 0755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	sqlDB, err := sql.Open("sqlite3", cfg.Database.Filename+"?_fk=1")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	m, err := db.Migrator(sqlDB)
	if err != nil {
		sqlDB.Close()
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("get version failed: %w", err)
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
	return nil
}

func createAdmin(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	email := fs.String("email", "", "admin email")
	name := fs.String("name", "", "display name for a new user")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr := strings.ToLower(strings.TrimSpace(*email))
	if addr == "" {
		return errors.New("-email is required")
	}

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	existing, err := database.Queries.GetUserByEmail(ctx, addr)
	switch {
	case err == nil:
		if _, err := database.Queries.SetUserRole(ctx, existing.ID, authz.RoleAdmin); err != nil {
			return fmt.Errorf("promote user: %w", err)
		}
		log.Info().Int64("user_id", existing.ID).Msg("Existing user promoted to admin")
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("look up user: %w", err)
	}

	password := os.Getenv("OCHE_ADMIN_PASSWORD")
	if len(password) < minAdminPasswordLength {
		return fmt.Errorf("OCHE_ADMIN_PASSWORD must be at least %d characters", minAdminPasswordLength)
	}
	displayName := strings.TrimSpace(*name)
	if displayName == "" {
		return errors.New("-name is required for a new user")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user, err := database.Queries.CreateUser(ctx, store.CreateUserParams{
		Email:        addr,
		Name:         displayName,
		PasswordHash: hash,
		Role:         authz.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	log.Info().Int64("user_id", user.ID).Msg("Admin created")
	return nil
}
