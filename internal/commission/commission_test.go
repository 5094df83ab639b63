package commission_test

import (
	"testing"

	"github.com/eventhive/ticketing/internal/commission"
	"github.com/eventhive/ticketing/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestResolve_Precedence(t *testing.T) {
	subtotal := dec("2000")

	tests := []struct {
		name       string
		event      *domain.Event
		organizer  *domain.Organizer
		wantSource commission.Source
		wantAmount string
	}{
		{
			name: "event platform fee wins over everything",
			event: &domain.Event{
				PlatformFeePercent: decPtr("5"),
				CommissionRate:     decPtr("7"),
				CommissionType:     domain.CommissionPercentage,
			},
			organizer:  &domain.Organizer{CommissionRate: decPtr("8")},
			wantSource: commission.SourceEventPlatformFee,
			wantAmount: "100",
		},
		{
			name: "zero platform fee falls through to event commission",
			event: &domain.Event{
				PlatformFeePercent: decPtr("0"),
				CommissionRate:     decPtr("7"),
				CommissionType:     domain.CommissionPercentage,
			},
			organizer:  &domain.Organizer{CommissionRate: decPtr("8")},
			wantSource: commission.SourceEventCommission,
			wantAmount: "140",
		},
		{
			name: "fixed event commission ignores subtotal",
			event: &domain.Event{
				CommissionRate: decPtr("250"),
				CommissionType: domain.CommissionFixed,
			},
			organizer:  &domain.Organizer{CommissionRate: decPtr("8")},
			wantSource: commission.SourceEventCommission,
			wantAmount: "250",
		},
		{
			name: "inconsistent event config falls through to organizer",
			event: &domain.Event{
				CommissionRate: decPtr("7"),
				CommissionType: "",
			},
			organizer:  &domain.Organizer{CommissionRate: decPtr("8")},
			wantSource: commission.SourceOrganizerCommission,
			wantAmount: "160",
		},
		{
			name:       "organizer default rate",
			event:      &domain.Event{},
			organizer:  &domain.Organizer{CommissionRate: decPtr("8")},
			wantSource: commission.SourceOrganizerCommission,
			wantAmount: "160",
		},
		{
			name:       "platform default when nothing configured",
			event:      &domain.Event{},
			organizer:  &domain.Organizer{},
			wantSource: commission.SourceDefault,
			wantAmount: "200",
		},
		{
			name:       "nil event and organizer still resolve",
			event:      nil,
			organizer:  nil,
			wantSource: commission.SourceDefault,
			wantAmount: "200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := commission.Resolve(tt.event, tt.organizer, subtotal)
			if res.Source != tt.wantSource {
				t.Errorf("source = %q, want %q", res.Source, tt.wantSource)
			}
			if !res.Amount.Equal(dec(tt.wantAmount)) {
				t.Errorf("amount = %s, want %s", res.Amount, tt.wantAmount)
			}
		})
	}
}

func TestResolve_Rounding(t *testing.T) {
	event := &domain.Event{
		PlatformFeePercent: decPtr("3.75"),
	}
	// 3.75% of 133.33 = 4.999875 -> 5.00 half-up.
	res := commission.Resolve(event, nil, dec("133.33"))
	if !res.Amount.Equal(dec("5.00")) {
		t.Errorf("amount = %s, want 5.00", res.Amount)
	}
}

func TestGatewayFee(t *testing.T) {
	tests := []struct {
		gateway   string
		method    string
		gross     string
		want      string
		wantKnown bool
	}{
		{"flutterwave", "mobile_money", "1000", "14", true},
		{"flutterwave", "card", "1000", "29", true},
		{"flutterwave", "bank_transfer", "1000", "15", true},
		{"paystack", "card", "1000", "29.50", true},
		{"someday-pay", "mobile_money", "1000", "15", true},  // unknown gateway uses default rates
		{"flutterwave", "crypto", "1000", "29", false},       // unknown method falls back to card rate
		{"flutterwave", "card", "99.99", "2.90", true},       // 2.8997 rounds half-up
	}
	for _, tt := range tests {
		fee, known := commission.GatewayFee(tt.gateway, tt.method, dec(tt.gross))
		if !fee.Equal(dec(tt.want)) {
			t.Errorf("GatewayFee(%q, %q, %s) = %s, want %s", tt.gateway, tt.method, tt.gross, fee, tt.want)
		}
		if known != tt.wantKnown {
			t.Errorf("GatewayFee(%q, %q) known = %v, want %v", tt.gateway, tt.method, known, tt.wantKnown)
		}
	}
}

func TestSettle_NetIdentity(t *testing.T) {
	event := &domain.Event{
		CommissionRate: decPtr("7.5"),
		CommissionType: domain.CommissionPercentage,
	}
	grosses := []string{"1000", "2500.50", "99.99", "0.03", "123456.78"}
	for _, g := range grosses {
		s := commission.Settle(event, nil, "flutterwave", "card", dec(g))
		sum := s.Net.Add(s.Commission.Amount).Add(s.GatewayFee)
		if sum.Sub(s.Gross).Abs().GreaterThan(dec("0.01")) {
			t.Errorf("gross %s: net+commission+fee = %s, want %s", g, sum, s.Gross)
		}
	}
}
