// Command countrylimits regenerates the per-country investment limits of
// every plan from fresh exchange rates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
	"github.com/zjoart/varlixo/internal/countrylimit"
	"github.com/zjoart/varlixo/internal/fx"
	"github.com/zjoart/varlixo/internal/plan"
	"github.com/zjoart/varlixo/pkg/config"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
)

func main() {
	countriesPath := pflag.StringP("countries", "c", "configs/countries.yaml", "YAML file listing target countries")
	pflag.Parse()

	if err := run(*countriesPath); err != nil {
		fmt.Fprintf(os.Stderr, "country limits failed: %v\n", err)
		os.Exit(1)
	}
}

func run(countriesPath string) error {
	cfg := config.LoadConfig()
	logger.Setup(cfg.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	countries, err := countrylimit.LoadCountries(countriesPath)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d countries from %s\n", len(countries), countriesPath)

	db := database.Connect(cfg.DBUrl)
	database.Migrate(db, &plan.Plan{})

	generator := countrylimit.NewGenerator(
		countries,
		countrylimit.NewRestCountries(countrylimit.RestCountriesBaseURL, cfg.FXTimeout),
		fx.NewDefaultClient(cfg.FXTimeout),
		plan.NewRepository(db),
		database.NewTransactor(db),
	)

	fmt.Println("Fetching currencies and exchange rates...")
	report, err := generator.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Updated %d plans for %d countries\n", report.Plans, report.Countries)
	if len(report.Skipped) > 0 {
		fmt.Printf("Skipped (no exchange rate): %s\n", strings.Join(report.Skipped, ", "))
	}
	return nil
}
