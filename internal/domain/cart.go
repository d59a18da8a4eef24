package domain

import "github.com/shopspring/decimal"

// LineKey — ключ уникальности позиции корзины.
type LineKey struct {
	ProductID string
	Variant   string
}

// CartLine — позиция корзины: снимок товара, количество и выбранный вариант.
// Пустой SelectedVariant означает, что вариант не выбран.
type CartLine struct {
	Product         Product `json:"product"`
	Quantity        int     `json:"quantity"`
	SelectedVariant string  `json:"selectedVariant,omitempty"`
}

// Key возвращает ключ уникальности позиции.
func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.Product.ID, Variant: l.SelectedVariant}
}

// Subtotal — цена позиции: price * quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotal суммирует price * quantity по всем позициям.
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// CartCount суммирует количество единиц по всем позициям.
func CartCount(lines []CartLine) int {
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

// ValidateLines проверяет инварианты корзины: ключи уникальны, quantity >= 1.
func ValidateLines(lines []CartLine) []error {
	var errs []error

	seen := make(map[LineKey]struct{}, len(lines))
	for _, line := range lines {
		if line.Product.ID == "" {
			errs = append(errs, ErrProductRequired)
		}
		if line.Quantity < 1 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if _, dup := seen[line.Key()]; dup {
			errs = append(errs, ErrDuplicateLine)
			continue
		}
		seen[line.Key()] = struct{}{}
	}

	return errs
}

// CloneLines копирует позиции вместе со снимками товаров.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	for i, line := range lines {
		out[i] = line
		out[i].Product = line.Product.Clone()
	}
	return out
}
