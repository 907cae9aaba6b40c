package biz

import (
	stdErrors "errors"
	"strings"

	pricingErrors "pricing-service/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// validateStruct 执行结构体标签校验并转换为 VALIDATION_ERROR
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if stdErrors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fe.Namespace()+" failed on "+fe.Tag())
		}
		return pricingErrors.ErrorValidation("%s", strings.Join(msgs, "; "))
	}
	return pricingErrors.ErrorValidation("%v", err)
}

func checkPercent(name string, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return pricingErrors.ErrorValidation("%s must be within [0, 100], got %s", name, pct)
	}
	return nil
}

func checkPrices(prices map[string]decimal.Decimal) error {
	for currency, price := range prices {
		if price.IsNegative() {
			return pricingErrors.ErrorValidation("price for %s must not be negative", currency)
		}
	}
	return nil
}
