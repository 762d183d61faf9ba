package countrylimit

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v2"
)

const RestCountriesBaseURL = "https://restcountries.com"

// Country is one entry of the target countries file. Currency overrides the
// lookup for countries with several legal tenders.
type Country struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

type countriesFile struct {
	Countries []Country `yaml:"countries"`
}

// LoadCountries reads the target countries from a YAML file.
func LoadCountries(path string) ([]Country, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read countries file: %w", err)
	}

	var file countriesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse countries file: %w", err)
	}

	seen := make(map[string]bool)
	countries := make([]Country, 0, len(file.Countries))
	for _, c := range file.Countries {
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
		if len(c.Code) != 2 {
			return nil, fmt.Errorf("country code %q is not ISO 3166 alpha-2", c.Code)
		}
		if seen[c.Code] {
			continue
		}
		seen[c.Code] = true
		countries = append(countries, c)
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("countries file %s lists no countries", path)
	}
	return countries, nil
}

type CurrencyResolver interface {
	Currencies(ctx context.Context, codes []string) (map[string]string, error)
}

// RestCountries maps country codes to currencies through the REST Countries API.
type RestCountries struct {
	client *resty.Client
}

func NewRestCountries(baseURL string, timeout time.Duration) *RestCountries {
	return &RestCountries{client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout)}
}

// Currencies returns the first currency (alphabetically) of each country.
func (c *RestCountries) Currencies(ctx context.Context, codes []string) (map[string]string, error) {
	var body []struct {
		CCA2       string                            `json:"cca2"`
		Currencies map[string]map[string]interface{} `json:"currencies"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"codes":  strings.Join(codes, ","),
			"fields": "cca2,currencies",
		}).
		SetResult(&body).
		Get("/v3.1/alpha")
	if err != nil {
		return nil, fmt.Errorf("restcountries: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("restcountries: unexpected status %d", resp.StatusCode())
	}

	currencies := make(map[string]string, len(body))
	for _, entry := range body {
		codes := make([]string, 0, len(entry.Currencies))
		for code := range entry.Currencies {
			codes = append(codes, code)
		}
		if len(codes) == 0 {
			continue
		}
		sort.Strings(codes)
		currencies[strings.ToUpper(entry.CCA2)] = codes[0]
	}
	return currencies, nil
}
