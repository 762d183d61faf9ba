// Command resetadmin creates the default admin account or resets its password.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/zjoart/varlixo/cmd/routes"
	"github.com/zjoart/varlixo/internal/auth"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/internal/wallet"
	"github.com/zjoart/varlixo/pkg/config"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reset admin failed: %v\n", err)
		os.Exit(1)
	}
}

func generatePassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func run() error {
	cfg := config.LoadConfig()
	logger.Setup(cfg.Env)
	defer logger.Sync()

	ctx := context.Background()
	email := user.NormalizeEmail(cfg.AdminDefaultEmail)

	password := cfg.AdminDefaultPassword
	generated := password == ""
	if generated {
		var err error
		if password, err = generatePassword(); err != nil {
			return err
		}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	db := database.Connect(cfg.DBUrl)
	database.Migrate(db, routes.Models()...)

	tx := database.NewTransactor(db)
	users := user.NewRepository(db)
	processor := wallet.NewProcessor(wallet.NewRepository(db), tx)

	err = tx.WithinTransaction(ctx, func(ctx context.Context) error {
		admin, err := users.FindByEmail(ctx, email)
		if errors.Is(err, user.ErrUserNotFound) {
			fmt.Printf("Creating admin %s\n", email)
			admin = &user.User{FullName: "Administrator", Email: email, PasswordHash: hash, Role: user.RoleAdmin}
			if err := users.CreateUser(ctx, admin); err != nil {
				return err
			}
			_, err = processor.EnsureWallet(ctx, admin.ID)
			return err
		}
		if err != nil {
			return err
		}

		fmt.Printf("Resetting password of %s\n", email)
		if err := users.UpdatePassword(ctx, admin.ID, hash); err != nil {
			return err
		}
		return users.UpdateRole(ctx, admin.ID, user.RoleAdmin)
	})
	if err != nil {
		return err
	}

	if generated {
		fmt.Printf("Generated password: %s\n", password)
	} else {
		fmt.Println("Password set from ADMIN_DEFAULT_PASSWORD")
	}
	return nil
}
