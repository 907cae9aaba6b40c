package service

import (
	stdErrors "errors"
	"strings"

	pricingErrors "pricing-service/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewPricingService, NewAdminService)

var validate = validator.New()

// check 校验请求参数
func check(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if stdErrors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fe.Field()+" failed on "+fe.Tag())
		}
		return pricingErrors.ErrorValidation("%s", strings.Join(msgs, "; "))
	}
	return pricingErrors.ErrorValidation("%v", err)
}
