// Command seed loads the plan catalog and, on request, demo accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/zjoart/varlixo/cmd/routes"
	"github.com/zjoart/varlixo/internal/auth"
	"github.com/zjoart/varlixo/internal/plan"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/internal/wallet"
	"github.com/zjoart/varlixo/pkg/config"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
	"gorm.io/gorm"
)

const testUserPassword = "Password123!"

var testUsers = []user.User{
	{FullName: "Test Investor", Email: "investor@varlixo.test", Country: "NG"},
	{FullName: "Test Support", Email: "support@varlixo.test", Country: "GB", Role: user.RoleAdmin},
}

func main() {
	plansPath := pflag.StringP("plans", "p", "configs/plans.yaml", "YAML plan catalog")
	withUsers := pflag.Bool("with-test-users", false, "also create demo accounts")
	pflag.Parse()

	if err := run(*plansPath, *withUsers); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Seed complete")
}

func run(plansPath string, withUsers bool) error {
	cfg := config.LoadConfig()
	logger.Setup(cfg.Env)
	defer logger.Sync()

	ctx := context.Background()

	plans, err := plan.LoadCatalog(plansPath)
	if err != nil {
		return err
	}

	db := database.Connect(cfg.DBUrl)
	database.Migrate(db, routes.Models()...)

	repo := plan.NewRepository(db)
	for i := range plans {
		if err := repo.Upsert(ctx, &plans[i]); err != nil {
			return fmt.Errorf("upsert plan %s: %w", plans[i].Slug, err)
		}
		fmt.Printf("  plan %-10s %s - %s USD\n", plans[i].Slug, plans[i].MinInvestment, plans[i].MaxInvestment)
	}
	fmt.Printf("Seeded %d plans\n", len(plans))

	if withUsers {
		return seedUsers(ctx, db)
	}
	return nil
}

func seedUsers(ctx context.Context, db *gorm.DB) error {
	tx := database.NewTransactor(db)
	users := user.NewRepository(db)
	processor := wallet.NewProcessor(wallet.NewRepository(db), tx)

	hash, err := auth.HashPassword(testUserPassword)
	if err != nil {
		return err
	}

	for _, u := range testUsers {
		_, err := users.FindByEmail(ctx, u.Email)
		if err == nil {
			fmt.Printf("  user %s already exists\n", u.Email)
			continue
		}
		if !errors.Is(err, user.ErrUserNotFound) {
			return err
		}

		u.PasswordHash = hash
		err = tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := users.CreateUser(ctx, &u); err != nil {
				return err
			}
			_, err := processor.EnsureWallet(ctx, u.ID)
			return err
		})
		if err != nil {
			return fmt.Errorf("create user %s: %w", u.Email, err)
		}
		fmt.Printf("  user %s (%s) password %s\n", u.Email, u.Role, testUserPassword)
	}
	return nil
}
