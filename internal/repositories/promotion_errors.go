package repositories

import "errors"

// ErrPromotionUsageExhausted is returned by RedeemUsage when the usage limit
// guard fails inside the atomic increment.
var ErrPromotionUsageExhausted = errors.New("promotion: usage limit exhausted")
