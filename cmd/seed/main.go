// Command seed loads the catalog file into an empty database and can
// create the first staff account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"assetbook/internal/config"
	"assetbook/internal/database"
	"assetbook/internal/domain"
	"assetbook/internal/models"
	"assetbook/internal/security"
	"assetbook/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		assetsPath = flag.String("assets", "configs/assets.yaml", "path to assets.yaml")
		adminUser  = flag.String("admin", "", "username of a staff account to create")
		adminEmail = flag.String("admin-email", "", "email of the staff account")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg.Database, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	assets := service.NewAssetService(db, db, nil, &logger)
	seeded, err := assets.SeedIfEmpty(ctx, *assetsPath)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	created := false
	if *adminUser != "" {
		// пароль только из окружения, чтобы не светить его в истории shell
		created, err = createAdmin(ctx, db, *adminUser, *adminEmail, os.Getenv("ADMIN_PASSWORD"))
		if err != nil {
			return err
		}
	}

	fmt.Printf("done: catalog_seeded=%t admin_created=%t\n", seeded, created)
	return nil
}

// createAdmin adds an active staff account unless the username is taken.
func createAdmin(ctx context.Context, users domain.UserRepository, username, email, password string) (bool, error) {
	if len(password) < 8 {
		return false, errors.New("ADMIN_PASSWORD must be at least 8 characters")
	}
	if email == "" {
		email = username + "@localhost"
	}

	taken, _, err := users.UserExists(ctx, username, email)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if taken {
		return false, nil
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	user := &models.User{
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		FirstName:       username,
		IsStaff:         true,
		IsActive:        true,
		EmailVerifiedAt: &now,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
