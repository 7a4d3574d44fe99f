package controllers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// paymentMethodTypes are the Stripe payment method types a client may ask
// for. Wallets such as Apple Pay and Google Pay are presented under "card".
var paymentMethodTypes = map[string]bool{
	"card":              true,
	"link":              true,
	"us_bank_account":   true,
	"sepa_debit":        true,
	"bacs_debit":        true,
	"acss_debit":        true,
	"au_becs_debit":     true,
	"cashapp":           true,
	"paypal":            true,
	"klarna":            true,
	"affirm":            true,
	"afterpay_clearpay": true,
	"ideal":             true,
	"bancontact":        true,
}

// RegisterValidators adds the payment binding tags to gin's validator engine.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("payment_method", validPaymentMethod)
}

func validPaymentMethod(fl validator.FieldLevel) bool {
	return paymentMethodTypes[fl.Field().String()]
}

// bindingMessage turns validator errors into a short client message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return "Invalid request: " + strings.Join(parts, ", ")
}
