package session

import (
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/pos/services/pos/internal/order"
)

// Config is the per-terminal configuration every session starts from.
type Config struct {
	VenueName        string
	DefaultOrderType string
	TaxRate          decimal.Decimal
	Currency         string
}

func DefaultConfig() Config {
	return Config{
		VenueName:        "Appetite",
		DefaultOrderType: order.TypeCounter,
		TaxRate:          decimal.Zero,
		Currency:         "USD",
	}
}

// LoadConfig reads the pos.* keys. Missing keys keep their defaults.
func LoadConfig(config *aqm.Config) (Config, error) {
	cfg := DefaultConfig()
	if config == nil {
		return cfg, nil
	}

	cfg.VenueName = config.GetStringOrDef("pos.venue.name", cfg.VenueName)
	cfg.Currency = config.GetStringOrDef("pos.currency", cfg.Currency)

	orderType := config.GetStringOrDef("pos.order.type", cfg.DefaultOrderType)
	switch orderType {
	case order.TypeTakeout, order.TypeCounter:
		cfg.DefaultOrderType = orderType
	case order.TypeDineIn:
		return cfg, fmt.Errorf("pos.order.type: dine-in orders need a table and cannot be the default")
	default:
		return cfg, fmt.Errorf("pos.order.type: %w: %q", order.ErrInvalidOrderType, orderType)
	}

	if raw, _ := config.GetString("pos.tax.rate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return cfg, fmt.Errorf("pos.tax.rate: %w", err)
		}
		if rate.IsNegative() {
			return cfg, fmt.Errorf("pos.tax.rate: negative rate %s", raw)
		}
		cfg.TaxRate = rate
	}

	return cfg, nil
}
