package commission

import (
	"errors"
	"math"
)

var (
	ErrNegativeAmount = errors.New("gross amount must be non-negative")
	ErrInvalidRate    = errors.New("commission rate must be in [0, 10000] basis points")
	ErrAmountTooLarge = errors.New("gross amount too large to split exactly")
)

// Split is the division of a gross booking amount into platform commission
// and stadium-owner net payout, in integer minor units.
type Split struct {
	GrossMinor      int64 `json:"gross_minor"`
	RateBps         int64 `json:"rate_bps"`
	CommissionMinor int64 `json:"commission_minor"`
	NetMinor        int64 `json:"net_minor"`
}

// Calculate floors the commission and gives the remainder to the owner, so
// CommissionMinor + NetMinor == GrossMinor holds exactly for every input.
func Calculate(grossMinor, rateBps int64) (Split, error) {
	if grossMinor < 0 {
		return Split{}, ErrNegativeAmount
	}
	if rateBps < 0 || rateBps > 10000 {
		return Split{}, ErrInvalidRate
	}
	// grossMinor*rateBps must not wrap; past this bound the floored division
	// would silently return garbage and break conservation.
	if rateBps > 0 && grossMinor > math.MaxInt64/rateBps {
		return Split{}, ErrAmountTooLarge
	}
	c := grossMinor * rateBps / 10000
	return Split{
		GrossMinor:      grossMinor,
		RateBps:         rateBps,
		CommissionMinor: c,
		NetMinor:        grossMinor - c,
	}, nil
}
