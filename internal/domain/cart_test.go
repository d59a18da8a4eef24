package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func vase() Product {
	return Product{
		ID:    "royal-vase",
		Title: "Royal Gold-Trimmed Vase",
		Price: decimal.NewFromInt(3200),
		Tags:  []string{"Vase", "Gold"},
	}
}

func mirror() Product {
	return Product{
		ID:    "golden-frame-mirror",
		Title: "Royal Heritage Gold Frame Mirror",
		Price: decimal.RequireFromString("4200.50"),
	}
}

func TestCartTotalAndCount(t *testing.T) {
	lines := []CartLine{
		{Product: vase(), Quantity: 2},
		{Product: mirror(), Quantity: 3, SelectedVariant: "gold"},
	}

	wantTotal := decimal.RequireFromString("19001.50")
	if got := CartTotal(lines); !got.Equal(wantTotal) {
		t.Fatalf("expected total %s, got %s", wantTotal, got)
	}
	if got := CartCount(lines); got != 5 {
		t.Fatalf("expected count 5, got %d", got)
	}
	if got := CartTotal(nil); !got.IsZero() {
		t.Fatalf("expected zero total for empty cart, got %s", got)
	}
}

func TestCartLineKey(t *testing.T) {
	plain := CartLine{Product: vase(), Quantity: 1}
	variant := CartLine{Product: vase(), Quantity: 1, SelectedVariant: "blue"}

	if plain.Key() == variant.Key() {
		t.Fatal("lines with different variants must have different keys")
	}
	if plain.Key() != (LineKey{ProductID: "royal-vase"}) {
		t.Fatalf("unexpected key %+v", plain.Key())
	}
}

func TestValidateLines(t *testing.T) {
	tests := []struct {
		name    string
		lines   []CartLine
		wantErr error
	}{
		{
			name:  "valid",
			lines: []CartLine{{Product: vase(), Quantity: 1}, {Product: vase(), Quantity: 1, SelectedVariant: "blue"}},
		},
		{
			name:    "duplicate key",
			lines:   []CartLine{{Product: vase(), Quantity: 1}, {Product: vase(), Quantity: 2}},
			wantErr: ErrDuplicateLine,
		},
		{
			name:    "zero quantity",
			lines:   []CartLine{{Product: vase(), Quantity: 0}},
			wantErr: ErrQuantityInvalid,
		},
		{
			name:    "missing product id",
			lines:   []CartLine{{Product: Product{Title: "nameless"}, Quantity: 1}},
			wantErr: ErrProductRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateLines(tt.lines)
			if tt.wantErr == nil {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			if !errors.Is(errors.Join(errs...), tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, errs)
			}
		})
	}
}

func TestCloneLines_DoesNotShareSlices(t *testing.T) {
	lines := []CartLine{{Product: vase(), Quantity: 1}}

	cloned := CloneLines(lines)
	cloned[0].Product.Tags[0] = "Mutated"
	cloned[0].Quantity = 7

	if lines[0].Product.Tags[0] != "Vase" {
		t.Fatal("clone must not share tag slice with original")
	}
	if lines[0].Quantity != 1 {
		t.Fatal("clone must not share line with original")
	}
}

func TestProductClone_KeepsEmptySlices(t *testing.T) {
	p := vase()
	p.Images = []ProductImage{}
	p.Details = nil

	cloned := p.Clone()
	if cloned.Images == nil || len(cloned.Images) != 0 {
		t.Fatalf("empty images must stay empty, got %#v", cloned.Images)
	}
	if cloned.Details != nil {
		t.Fatalf("nil details must stay nil, got %#v", cloned.Details)
	}

	data, err := json.Marshal(cloned)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"images":[]`) {
		t.Fatalf("empty images must encode as [], got %s", data)
	}
}

func TestProductValidate(t *testing.T) {
	p := vase()
	if errs := p.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid product, got %v", errs)
	}

	bad := Product{Price: decimal.Zero, InStock: -1}
	if got := len(bad.Validate()); got != 4 {
		t.Fatalf("expected 4 validation errors, got %d", got)
	}
}

func TestProductHasTag(t *testing.T) {
	p := vase()
	if !p.HasTag("Gold") {
		t.Fatal("expected Gold tag")
	}
	if p.HasTag("Mirror") {
		t.Fatal("unexpected Mirror tag")
	}
}
