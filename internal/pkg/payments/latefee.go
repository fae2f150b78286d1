package payments

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/academyhq/academy-server/internal/pkg/env"
)

// Late fee types.
const (
	LateFeeTypePercentage = "percentage"
	LateFeeTypeFixed      = "fixed"
)

// LateFeeConfig is the late-payment policy. Loaded from configuration at
// startup, never mutated by the core.
type LateFeeConfig struct {
	Enabled   bool
	Type      string
	Value     float64
	GraceDays int
	DueDay    int
}

// LoadLateFeeConfigFromEnv reads the late-fee policy from the environment.
func LoadLateFeeConfigFromEnv() LateFeeConfig {
	enabled := strings.EqualFold(env.GetEnv("LATE_FEE_ENABLED", "false"), "true")
	value, _ := strconv.ParseFloat(env.GetEnv("LATE_FEE_VALUE", "0"), 64)
	graceDays, _ := strconv.Atoi(env.GetEnv("LATE_FEE_GRACE_DAYS", "5"))
	dueDay, _ := strconv.Atoi(env.GetEnv("LATE_FEE_DUE_DAY", "1"))

	feeType := strings.ToLower(strings.TrimSpace(env.GetEnv("LATE_FEE_TYPE", LateFeeTypePercentage)))
	if feeType != LateFeeTypeFixed {
		feeType = LateFeeTypePercentage
	}

	return LateFeeConfig{
		Enabled:   enabled,
		Type:      feeType,
		Value:     value,
		GraceDays: graceDays,
		DueDay:    dueDay,
	}
}

// ComputeLateFee returns the additional charge for an overdue payment.
// Within the grace period (or when disabled) the fee is zero. Percentage
// fees scale with the base amount; fixed fees apply unconditionally and are
// not prorated by how late the payment is.
func ComputeLateFee(baseAmount float64, daysOverdue int, cfg LateFeeConfig) float64 {
	if !cfg.Enabled || daysOverdue <= cfg.GraceDays {
		return 0
	}
	switch cfg.Type {
	case LateFeeTypeFixed:
		return cfg.Value
	case LateFeeTypePercentage:
		return baseAmount * cfg.Value / 100
	}
	return 0
}

// DaysOverdue counts whole days between a deadline and a reference date,
// rounding partial days up and clamping at zero.
func DaysOverdue(deadline, reference time.Time) int {
	diff := reference.Sub(deadline)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// AmountDue materializes base amount plus any applicable late fee.
func AmountDue(baseAmount float64, deadline, reference time.Time, cfg LateFeeConfig) float64 {
	return baseAmount + ComputeLateFee(baseAmount, DaysOverdue(deadline, reference), cfg)
}
