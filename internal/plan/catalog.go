package plan

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type catalogEntry struct {
	Name          string   `yaml:"name"`
	Slug          string   `yaml:"slug"`
	Description   string   `yaml:"description"`
	MinInvestment string   `yaml:"min_investment"`
	MaxInvestment string   `yaml:"max_investment"`
	ROIPercent    string   `yaml:"roi_percent"`
	DurationDays  int      `yaml:"duration_days"`
	Features      []string `yaml:"features"`
	Active        *bool    `yaml:"active"`
}

type catalogFile struct {
	Plans []catalogEntry `yaml:"plans"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be a positive number, got %q", field, value)
	}
	return d, nil
}

// LoadCatalog reads the plan catalog used by the seed script. Plans are
// active unless the entry says otherwise.
func LoadCatalog(path string) ([]Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse plans file: %w", err)
	}
	if len(file.Plans) == 0 {
		return nil, fmt.Errorf("plans file %s lists no plans", path)
	}

	plans := make([]Plan, 0, len(file.Plans))
	seen := make(map[string]bool)
	for _, e := range file.Plans {
		p, err := e.toPlan()
		if err != nil {
			return nil, err
		}
		if seen[p.Slug] {
			return nil, fmt.Errorf("duplicate plan slug %q", p.Slug)
		}
		seen[p.Slug] = true
		plans = append(plans, p)
	}
	return plans, nil
}

func (e catalogEntry) toPlan() (Plan, error) {
	p := Plan{
		Name:         strings.TrimSpace(e.Name),
		Slug:         strings.TrimSpace(e.Slug),
		Description:  strings.TrimSpace(e.Description),
		DurationDays: e.DurationDays,
		Features:     Features(e.Features),
		IsActive:     e.Active == nil || *e.Active,
	}
	if p.Name == "" {
		return Plan{}, fmt.Errorf("plan name is required")
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}

	var err error
	if p.MinInvestment, err = parseAmount(p.Slug+".min_investment", e.MinInvestment); err != nil {
		return Plan{}, err
	}
	if p.MaxInvestment, err = parseAmount(p.Slug+".max_investment", e.MaxInvestment); err != nil {
		return Plan{}, err
	}
	if p.ROIPercent, err = parseAmount(p.Slug+".roi_percent", e.ROIPercent); err != nil {
		return Plan{}, err
	}
	if p.MaxInvestment.LessThan(p.MinInvestment) {
		return Plan{}, fmt.Errorf("%s: max_investment is below min_investment", p.Slug)
	}
	if p.DurationDays <= 0 {
		return Plan{}, fmt.Errorf("%s: duration_days must be positive", p.Slug)
	}
	return p, nil
}
