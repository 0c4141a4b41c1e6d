package market

import (
	"vega/pkg/errors"
)

// ValidatePrice rejects missing or out-of-range prices
func ValidatePrice(price, max float64) error {
	if price <= 0 || price > max {
		return errors.Wrapf(errors.ErrDataValidation, "price %.2f out of range (0, %.0f]", price, max)
	}
	return nil
}

// ValidateCandles rejects a candle series too short for indicator work
func ValidateCandles(candles []Candle, min int) error {
	if len(candles) < min {
		return errors.Wrapf(errors.ErrDataValidation, "candle series has %d bars, need %d", len(candles), min)
	}
	return nil
}

// ValidateChain rejects an option chain with too few strikes or no open
// interest anywhere in the window
func ValidateChain(chain *OptionChain, minStrikes int) error {
	if chain == nil {
		return errors.Wrap(errors.ErrDataValidation, "option chain missing")
	}
	if len(chain.Strikes) < minStrikes {
		return errors.Wrapf(errors.ErrDataValidation, "chain has %d strikes, need %d", len(chain.Strikes), minStrikes)
	}
	if chain.TotalOpenInterest() == 0 {
		return errors.Wrap(errors.ErrDataValidation, "chain has zero aggregate open interest")
	}
	return nil
}
