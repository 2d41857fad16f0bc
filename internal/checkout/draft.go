package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// Shipping holds the customer and delivery fields collected on the first step.
type Shipping struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Postal  string `json:"postal" validate:"required"`
	Country string `json:"country,omitempty"`
}

// Payment holds the card fields collected on the second step.
type Payment struct {
	CardNumber string `json:"cardNumber" validate:"required"`
	Expiry     string `json:"expiry" validate:"required"`
	CVV        string `json:"cvv" validate:"required"`
}

// Draft is everything entered during checkout. It survives step changes.
type Draft struct {
	Shipping Shipping
	Payment  Payment
	SaveInfo bool
}

// OneLine renders the address as "address, city, state postal".
func (s Shipping) OneLine() string {
	return fmt.Sprintf("%s, %s, %s %s", s.Address, s.City, s.State, s.Postal)
}

// User is the logged-in account used to pre-fill the shipping step.
type User struct {
	ID        int64  `json:"id,omitempty"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

// SavedInfo is the shipping subset remembered for the next checkout.
type SavedInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

const (
	msgShippingRequired = "Please fill in all required shipping fields"
	msgPaymentRequired  = "Please fill in all payment details"
)

// ValidationError reports the required fields left empty on a step.
type ValidationError struct {
	Step    Step
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validateStep(v *validator.Validate, step Step, d Draft) error {
	var (
		target  any
		message string
	)
	switch step {
	case StepShipping:
		target, message = d.Shipping, msgShippingRequired
	case StepPayment:
		target, message = d.Payment, msgPaymentRequired
	default:
		return nil
	}
	err := v.Struct(target)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Step: step, Fields: fields, Message: message}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}
