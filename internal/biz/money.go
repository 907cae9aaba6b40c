package biz

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	currencySymbols = map[string]string{
		"INR": "₹",
		"USD": "$",
		"EUR": "€",
		"GBP": "£",
		"AUD": "A$",
		"CAD": "C$",
		"SGD": "S$",
		"AED": "AED ",
		"JPY": "¥",
	}

	zeroDecimalCurrencies = map[string]bool{
		"JPY": true,
		"KRW": true,
		"VND": true,
		"IDR": true,
	}
)

// NormalizeCurrency 统一币种代码为大写
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// CurrencyDecimals 币种小数位
func CurrencyDecimals(currency string) int32 {
	if zeroDecimalCurrencies[NormalizeCurrency(currency)] {
		return 0
	}
	return 2
}

// RoundMoney 按币种精度四舍五入
func RoundMoney(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(CurrencyDecimals(currency))
}

// FormatPrice 格式化金额，例如 ₹4,999.00
func FormatPrice(amount decimal.Decimal, currency string) string {
	code := NormalizeCurrency(currency)
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	digits := amount.StringFixed(CurrencyDecimals(code))
	intPart, fracPart := digits, ""
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		intPart, fracPart = digits[:i], digits[i:]
	}
	return sign + symbol + groupThousands(intPart) + fracPart
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// applyDiscount 计算折后价 fee × (1 − pct/100)
func applyDiscount(fee, pct decimal.Decimal, currency string) decimal.Decimal {
	return RoundMoney(fee.Mul(hundred.Sub(pct)).Div(hundred), currency)
}

// portion 计算 amount × pct/100
func portion(amount, pct decimal.Decimal, currency string) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(hundred), currency)
}
