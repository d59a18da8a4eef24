package checkout

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

func TestValidateForms(t *testing.T) {
	validShipping := ShippingDetails{
		FullName: "Asha Rao",
		Address:  "123 Art Gallery Lane",
		City:     "New York",
		State:    "NY",
		ZipCode:  "10001",
		Phone:    "2125550100",
	}
	validPayment := PaymentDetails{
		CardNumber: "4242424242424242",
		NameOnCard: "Asha Rao",
		ExpiryDate: "01/30",
		CVV:        "1234",
	}

	tests := []struct {
		name       string
		mutate     func(*ShippingDetails, *PaymentDetails)
		wantFields []string
	}{
		{name: "valid", mutate: func(*ShippingDetails, *PaymentDetails) {}},
		{
			name:       "missing full name",
			mutate:     func(s *ShippingDetails, _ *PaymentDetails) { s.FullName = "" },
			wantFields: []string{"shipping.fullName"},
		},
		{
			name:       "zip too long",
			mutate:     func(s *ShippingDetails, _ *PaymentDetails) { s.ZipCode = "12345678901" },
			wantFields: []string{"shipping.zipCode"},
		},
		{
			name:       "luhn failure",
			mutate:     func(_ *ShippingDetails, p *PaymentDetails) { p.CardNumber = "4242424242424241" },
			wantFields: []string{"payment.cardNumber"},
		},
		{
			name:       "cvv letters",
			mutate:     func(_ *ShippingDetails, p *PaymentDetails) { p.CVV = "12a" },
			wantFields: []string{"payment.cvv"},
		},
		{
			name:       "expiry format",
			mutate:     func(_ *ShippingDetails, p *PaymentDetails) { p.ExpiryDate = "2030-01" },
			wantFields: []string{"payment.expiryDate"},
		},
		{
			name: "both forms empty",
			mutate: func(s *ShippingDetails, p *PaymentDetails) {
				*s = ShippingDetails{}
				*p = PaymentDetails{}
			},
			wantFields: []string{
				"shipping.fullName", "shipping.address", "shipping.city", "shipping.state",
				"shipping.zipCode", "shipping.phone", "payment.cardNumber", "payment.nameOnCard",
				"payment.expiryDate", "payment.cvv",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shipping, payment := validShipping, validPayment
			tt.mutate(&shipping, &payment)

			err := ValidateForms(shipping, payment)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(validationErr.Fields) != len(tt.wantFields) {
				t.Fatalf("expected %d field errors, got %v", len(tt.wantFields), validationErr.Fields)
			}
			for _, field := range tt.wantFields {
				if _, ok := validationErr.Fields[field]; !ok {
					t.Fatalf("expected error for %s, got %v", field, validationErr.Fields)
				}
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"shipping.zipCode": "is required",
		"payment.cvv":      "must contain only digits",
	}}

	want := "validation failed: payment.cvv must contain only digits; shipping.zipCode is required"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestPaymentDetails_Last4(t *testing.T) {
	tests := map[string]string{
		"4242 4242 4242 1881": "1881",
		"4242-4242-4242-4242": "4242",
		"123":                 "123",
		"":                    "",
	}
	for card, want := range tests {
		if got := (PaymentDetails{CardNumber: card}).Last4(); got != want {
			t.Fatalf("Last4(%q) = %q, want %q", card, got, want)
		}
	}
}

func TestShippingDetails_ShippingAddress(t *testing.T) {
	got := ShippingDetails{
		FullName: " Asha Rao ",
		Address:  "123 Art Gallery Lane ",
		City:     " New York",
		State:    "NY",
		ZipCode:  " 10001 ",
		Phone:    "2125550100\n",
	}.ShippingAddress()

	want := domain.ShippingAddress{
		FullName: "Asha Rao",
		Address:  "123 Art Gallery Lane",
		City:     "New York",
		State:    "NY",
		ZipCode:  "10001",
		Phone:    "2125550100",
	}
	if got != want {
		t.Fatalf("ShippingAddress() = %+v, want %+v", got, want)
	}
}

func TestValidateForms_ExpiryRuleRegistered(t *testing.T) {
	shipping := ShippingDetails{
		FullName: "Asha Rao", Address: "123 Art Gallery Lane", City: "New York",
		State: "NY", ZipCode: "10001", Phone: "2125550100",
	}
	payment := PaymentDetails{CardNumber: "4242424242424242", NameOnCard: "Asha Rao", CVV: "123"}

	for expiry, valid := range map[string]bool{"12/29": true, "01/30": true, "13/29": false, "1/29": false} {
		payment.ExpiryDate = expiry
		err := ValidateForms(shipping, payment)
		if valid {
			if err != nil {
				t.Fatalf("expiry %q: unexpected error %v", expiry, err)
			}
			continue
		}
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expiry %q: expected ValidationError, got %v", expiry, err)
		}
		if msg := validationErr.Fields["payment.expiryDate"]; msg != "must be in MM/YY format" {
			t.Fatalf("expiry %q: unexpected message %q", expiry, msg)
		}
	}
}
