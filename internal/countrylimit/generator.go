package countrylimit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zjoart/varlixo/internal/fx"
	"github.com/zjoart/varlixo/internal/plan"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
)

type RateSource interface {
	Fresh(ctx context.Context) (fx.Rates, error)
}

type PlanStore interface {
	List(ctx context.Context, activeOnly bool) ([]plan.Plan, error)
	UpdateCountryLimits(ctx context.Context, id uuid.UUID, limits plan.CountryLimits) error
}

type Report struct {
	Plans     int
	Countries int
	// Skipped lists countries left out because no rate exists for their currency.
	Skipped []string
}

type Generator struct {
	countries []Country
	resolver  CurrencyResolver
	rates     RateSource
	plans     PlanStore
	tx        database.Transactor
}

func NewGenerator(countries []Country, resolver CurrencyResolver, rates RateSource, plans PlanStore, tx database.Transactor) *Generator {
	return &Generator{countries: countries, resolver: resolver, rates: rates, plans: plans, tx: tx}
}

// Run regenerates the country limits of every plan. Nothing is written unless
// the currency lookup and the rate fetch both succeed, and all plans are
// written in one transaction.
func (g *Generator) Run(ctx context.Context) (*Report, error) {
	currencies, err := g.currencies(ctx)
	if err != nil {
		return nil, err
	}

	rates, err := g.rates.Fresh(ctx)
	if err != nil {
		return nil, err
	}

	plans, err := g.plans.List(ctx, false)
	if err != nil {
		return nil, err
	}

	report := &Report{Plans: len(plans)}
	type target struct {
		code     string
		currency string
	}
	var targets []target
	for _, c := range g.countries {
		currency := currencies[c.Code]
		if _, ok := rates.Rate(currency); !ok {
			logger.Warn("No exchange rate for country currency", logger.Fields{"country": c.Code, "currency": currency})
			report.Skipped = append(report.Skipped, c.Code)
			continue
		}
		targets = append(targets, target{code: c.Code, currency: currency})
	}
	report.Countries = len(targets)

	computed := make(map[uuid.UUID]plan.CountryLimits, len(plans))
	for _, p := range plans {
		limits := make(plan.CountryLimits, len(targets))
		for _, t := range targets {
			rate, _ := rates.Rate(t.currency)
			limit, err := Derive(t.currency, p.MinInvestment, p.MaxInvestment, rate)
			if err != nil {
				return nil, fmt.Errorf("plan %s, country %s: %w", p.Slug, t.code, err)
			}
			limits[t.code] = limit
		}
		computed[p.ID] = limits
	}

	err = g.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, p := range plans {
			if err := g.plans.UpdateCountryLimits(ctx, p.ID, computed[p.ID]); err != nil {
				return fmt.Errorf("update plan %s: %w", p.Slug, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Country limits regenerated", logger.Fields{
		"plans":     report.Plans,
		"countries": report.Countries,
		"skipped":   len(report.Skipped),
	})
	return report, nil
}

// currencies merges file overrides with the REST Countries lookup.
func (g *Generator) currencies(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(g.countries))
	var lookup []string
	for _, c := range g.countries {
		if c.Currency != "" {
			out[c.Code] = c.Currency
			continue
		}
		lookup = append(lookup, c.Code)
	}
	if len(lookup) == 0 {
		return out, nil
	}

	resolved, err := g.resolver.Currencies(ctx, lookup)
	if err != nil {
		return nil, apperr.Upstream("country currencies unavailable", err)
	}
	for _, code := range lookup {
		currency, ok := resolved[code]
		if !ok {
			return nil, apperr.Upstream("country currencies unavailable", fmt.Errorf("no currency returned for %s", code))
		}
		out[code] = currency
	}
	return out, nil
}
