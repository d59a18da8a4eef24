package checkout

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// ShippingDetails — форма адреса доставки.
type ShippingDetails struct {
	FullName string `json:"fullName" validate:"required,max=120"`
	Address  string `json:"address" validate:"required,max=200"`
	City     string `json:"city" validate:"required,max=80"`
	State    string `json:"state" validate:"required,max=80"`
	ZipCode  string `json:"zipCode" validate:"required,min=5,max=10"`
	Phone    string `json:"phone" validate:"required,min=7,max=20"`
}

// ShippingAddress переводит форму в адрес заказа.
func (s ShippingDetails) ShippingAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName: strings.TrimSpace(s.FullName),
		Address:  strings.TrimSpace(s.Address),
		City:     strings.TrimSpace(s.City),
		State:    strings.TrimSpace(s.State),
		ZipCode:  strings.TrimSpace(s.ZipCode),
		Phone:    strings.TrimSpace(s.Phone),
	}
}

// PaymentDetails — форма оплаты. Платёж не проводится, номер карты
// в заказе не сохраняется (только последние 4 цифры).
type PaymentDetails struct {
	CardNumber string `json:"cardNumber" validate:"required,credit_card"`
	NameOnCard string `json:"nameOnCard" validate:"required,max=120"`
	ExpiryDate string `json:"expiryDate" validate:"required,expiry"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// Last4 возвращает последние четыре цифры номера карты.
func (p PaymentDetails) Last4() string {
	digits := make([]byte, 0, len(p.CardNumber))
	for i := 0; i < len(p.CardNumber); i++ {
		if c := p.CardNumber[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) <= 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}

// ValidationError содержит ошибки полей формы: json-имя поля -> сообщение.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	if err := v.RegisterValidation("expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register expiry validation: %v", err))
	}
	return v
}

// ValidateForms проверяет обе формы и объединяет ошибки полей.
func ValidateForms(shipping ShippingDetails, payment PaymentDetails) error {
	fields := map[string]string{}
	collect(fields, "shipping", validate.Struct(shipping))
	collect(fields, "payment", validate.Struct(payment))
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func collect(fields map[string]string, prefix string, err error) {
	if err == nil {
		return
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		fields[prefix] = err.Error()
		return
	}
	for _, fieldErr := range errs {
		fields[prefix+"."+fieldErr.Field()] = validationMessage(fieldErr)
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "credit_card":
		return "must be a valid card number"
	case "expiry":
		return "must be in MM/YY format"
	case "numeric":
		return "must contain only digits"
	}
	return "is invalid"
}
