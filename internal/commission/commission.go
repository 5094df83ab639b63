package commission

import (
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceEventPlatformFee    Source = "event_platform_fee"
	SourceEventCommission     Source = "event_commission"
	SourceOrganizerCommission Source = "organizer_commission"
	SourceDefault             Source = "default"
)

// DefaultRate is the platform-wide fallback commission percentage.
var DefaultRate = decimal.NewFromInt(10)

type Result struct {
	Amount decimal.Decimal
	Rate   decimal.Decimal
	Type   domain.CommissionType
	Source Source
}

type resolver func(event *domain.Event, organizer *domain.Organizer, subtotal decimal.Decimal) *Result

// resolvers are consulted in precedence order; the first non-nil result
// wins. Inconsistent configuration at one level falls through to the next,
// so resolution always terminates at the platform default and never errors.
var resolvers = []resolver{
	resolveEventPlatformFee,
	resolveEventCommission,
	resolveOrganizerCommission,
	resolveDefault,
}

// Resolve computes the platform commission for a subtotal in the booking's
// currency, rounded half-up to 2 decimal places.
func Resolve(event *domain.Event, organizer *domain.Organizer, subtotal decimal.Decimal) Result {
	for _, r := range resolvers {
		if res := r(event, organizer, subtotal); res != nil {
			res.Amount = res.Amount.Round(2)
			return *res
		}
	}
	// Unreachable: resolveDefault always returns a result.
	return Result{}
}

func resolveEventPlatformFee(event *domain.Event, _ *domain.Organizer, subtotal decimal.Decimal) *Result {
	if event == nil || event.PlatformFeePercent == nil || event.PlatformFeePercent.IsZero() {
		return nil
	}
	rate := *event.PlatformFeePercent
	return &Result{
		Amount: percentOf(subtotal, rate),
		Rate:   rate,
		Type:   domain.CommissionPercentage,
		Source: SourceEventPlatformFee,
	}
}

func resolveEventCommission(event *domain.Event, _ *domain.Organizer, subtotal decimal.Decimal) *Result {
	if event == nil || event.CommissionRate == nil {
		return nil
	}
	rate := *event.CommissionRate
	switch event.CommissionType {
	case domain.CommissionPercentage:
		return &Result{
			Amount: percentOf(subtotal, rate),
			Rate:   rate,
			Type:   domain.CommissionPercentage,
			Source: SourceEventCommission,
		}
	case domain.CommissionFixed:
		// Fixed commission is an absolute amount regardless of subtotal.
		return &Result{
			Amount: rate,
			Rate:   rate,
			Type:   domain.CommissionFixed,
			Source: SourceEventCommission,
		}
	default:
		// Rate without a recognised type is inconsistent config; fall
		// through to the next precedence level.
		return nil
	}
}

func resolveOrganizerCommission(_ *domain.Event, organizer *domain.Organizer, subtotal decimal.Decimal) *Result {
	if organizer == nil || organizer.CommissionRate == nil {
		return nil
	}
	rate := *organizer.CommissionRate
	return &Result{
		Amount: percentOf(subtotal, rate),
		Rate:   rate,
		Type:   domain.CommissionPercentage,
		Source: SourceOrganizerCommission,
	}
}

func resolveDefault(_ *domain.Event, _ *domain.Organizer, subtotal decimal.Decimal) *Result {
	return &Result{
		Amount: percentOf(subtotal, DefaultRate),
		Rate:   DefaultRate,
		Type:   domain.CommissionPercentage,
		Source: SourceDefault,
	}
}

var hundred = decimal.NewFromInt(100)

func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}
