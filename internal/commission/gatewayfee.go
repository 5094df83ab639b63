package commission

import (
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/shopspring/decimal"
)

// Fee rates as a percentage of gross, keyed by gateway then payment
// method. Different providers price the same method differently, so the
// lookup is per gateway; a gateway we have no table for uses the default
// rates, and unknown methods fall back to the card rate.
var defaultFeeRates = map[string]decimal.Decimal{
	"mobile_money":  decimal.NewFromFloat(1.5),
	"card":          decimal.NewFromFloat(2.9),
	"bank_transfer": decimal.NewFromFloat(1.5),
}

var gatewayFeeRates = map[string]map[string]decimal.Decimal{
	"flutterwave": {
		"mobile_money":  decimal.NewFromFloat(1.4),
		"card":          decimal.NewFromFloat(2.9),
		"bank_transfer": decimal.NewFromFloat(1.5),
	},
	"paystack": {
		"mobile_money":  decimal.NewFromFloat(1.5),
		"card":          decimal.NewFromFloat(2.95),
		"bank_transfer": decimal.NewFromFloat(1.5),
	},
}

var cardRate = decimal.NewFromFloat(2.9)

// GatewayFee returns the processor's cut of a gross amount, rounded
// half-up to 2 decimal places, and whether the method was recognised.
func GatewayFee(gatewayName, method string, gross decimal.Decimal) (decimal.Decimal, bool) {
	table, ok := gatewayFeeRates[gatewayName]
	if !ok {
		table = defaultFeeRates
	}
	rate, known := table[method]
	if !known {
		rate = cardRate
	}
	return percentOf(gross, rate).Round(2), known
}

// Settle computes the full fee breakdown for a sale: platform commission,
// gateway fee, and the net credited toward the organizer's balance.
func Settle(event *domain.Event, organizer *domain.Organizer, gatewayName, method string, gross decimal.Decimal) Settlement {
	comm := Resolve(event, organizer, gross)
	fee, known := GatewayFee(gatewayName, method, gross)
	return Settlement{
		Gross:       gross,
		Commission:  comm,
		GatewayFee:  fee,
		Net:         gross.Sub(fee).Sub(comm.Amount),
		KnownMethod: known,
	}
}

type Settlement struct {
	Gross       decimal.Decimal
	Commission  Result
	GatewayFee  decimal.Decimal
	Net         decimal.Decimal
	KnownMethod bool
}
