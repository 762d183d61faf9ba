package plan

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Features is a postgres text[] column.
type Features []string

func (Features) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (f Features) Value() (driver.Value, error) {
	return pq.StringArray(f).Value()
}

func (f *Features) Scan(src interface{}) error {
	return (*pq.StringArray)(f).Scan(src)
}

// CountryLimit is the plan's investment range expressed in one country's
// currency, with the USD amounts that range maps back to.
type CountryLimit struct {
	Currency      string          `json:"currency"`
	Rate          decimal.Decimal `json:"rate"`
	LocalMin      decimal.Decimal `json:"local_min"`
	LocalMax      decimal.Decimal `json:"local_max"`
	MinInvestment decimal.Decimal `json:"min_investment"`
	MaxInvestment decimal.Decimal `json:"max_investment"`
}

// CountryLimits is keyed by ISO-3166 alpha-2 country code.
type CountryLimits map[string]CountryLimit

type Plan struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string          `gorm:"not null" json:"name"`
	Slug          string          `gorm:"uniqueIndex;not null" json:"slug"`
	Description   string          `json:"description"`
	MinInvestment decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"min_investment"`
	MaxInvestment decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"max_investment"`
	ROIPercent    decimal.Decimal `gorm:"column:roi_percent;type:numeric(8,2);not null" json:"roi_percent"`
	DurationDays  int             `gorm:"not null" json:"duration_days"`
	Features      Features        `json:"features"`
	IsActive      bool            `gorm:"not null" json:"is_active"`
	CountryLimits CountryLimits   `gorm:"serializer:json;type:jsonb" json:"country_limits,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// View is a plan as shown to a visitor from one country.
type View struct {
	Plan
	Currency string          `json:"currency"`
	LocalMin decimal.Decimal `json:"local_min"`
	LocalMax decimal.Decimal `json:"local_max"`
}

// ForCountry applies the country's derived limits, falling back to the USD
// range when none were generated.
func (p Plan) ForCountry(country string) View {
	view := View{Plan: p, Currency: "USD", LocalMin: p.MinInvestment, LocalMax: p.MaxInvestment}
	if limit, ok := p.CountryLimits[country]; ok {
		view.MinInvestment = limit.MinInvestment
		view.MaxInvestment = limit.MaxInvestment
		view.Currency = limit.Currency
		view.LocalMin = limit.LocalMin
		view.LocalMax = limit.LocalMax
	}
	view.CountryLimits = nil
	return view
}
