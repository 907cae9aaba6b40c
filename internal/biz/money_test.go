package biz_test

import (
	"testing"

	"pricing-service/internal/biz"

	"github.com/stretchr/testify/assert"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"4999", "INR", "₹4,999.00"},
		{"1234567.5", "inr", "₹1,234,567.50"},
		{"59", "USD", "$59.00"},
		{"999", "USD", "$999.00"},
		{"1200", "JPY", "¥1,200"},
		{"-15.5", "EUR", "-€15.50"},
		{"10", "CHF", "CHF 10.00"},
		{"0", "AED", "AED 0.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, biz.FormatPrice(dec(tt.amount), tt.currency), "%s %s", tt.amount, tt.currency)
	}
}

func TestRoundMoney(t *testing.T) {
	assert.True(t, dec("10.13").Equal(biz.RoundMoney(dec("10.125"), "USD")))
	assert.True(t, dec("10").Equal(biz.RoundMoney(dec("10.4"), "JPY")))
	assert.EqualValues(t, 0, biz.CurrencyDecimals("jpy"))
	assert.EqualValues(t, 2, biz.CurrencyDecimals("INR"))
}
