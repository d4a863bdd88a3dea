package enums

import "fmt"

// PriceModel maps to the price_model enum in Postgres.
type PriceModel string

const (
	PriceModelPerScrape    PriceModel = "PER_SCRAPE"
	PriceModelSubscription PriceModel = "SUBSCRIPTION"
	PriceModelFlat         PriceModel = "FLAT"
)

var validPriceModels = []PriceModel{
	PriceModelPerScrape,
	PriceModelSubscription,
	PriceModelFlat,
}

// String implements fmt.Stringer.
func (p PriceModel) String() string {
	return string(p)
}

// IsValid reports whether the value matches the canonical price_model enum.
func (p PriceModel) IsValid() bool {
	for _, candidate := range validPriceModels {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePriceModel converts raw input into PriceModel.
func ParsePriceModel(value string) (PriceModel, error) {
	for _, candidate := range validPriceModels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid price model %q", value)
}
