package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// ProductImage — изображение товара в галерее карточки.
type ProductImage struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// ProductReview — отзыв покупателя о товаре.
type ProductReview struct {
	ID       string  `json:"id"`
	UserName string  `json:"userName"`
	Rating   float64 `json:"rating"`
	Comment  string  `json:"comment"`
	Date     string  `json:"date"`
}

// Product — неизменяемая запись каталога.
// JSON-теги совпадают с форматом сохранённой корзины, поэтому снимок товара
// в корзине полностью повторяет карточку каталога.
type Product struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Artist           string          `json:"artist"`
	Price            decimal.Decimal `json:"price"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"shortDescription"`
	Images           []ProductImage  `json:"images"`
	Rating           float64         `json:"rating"`
	Reviews          []ProductReview `json:"reviews"`
	Details          []string        `json:"details"`
	Features         []string        `json:"features"`
	Materials        []string        `json:"materials"`
	Dimensions       string          `json:"dimensions"`
	InStock          int             `json:"inStock"`
	Category         string          `json:"category"`
	Tags             []string        `json:"tags"`
	Featured         bool            `json:"featured"`
}

// Validate проверяет инварианты карточки товара и возвращает список замечаний.
func (p *Product) Validate() []error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, ErrProductRequired)
	}
	if p.Title == "" {
		errs = append(errs, ErrProductTitleRequired)
	}
	if !p.Price.IsPositive() {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.InStock < 0 {
		errs = append(errs, ErrProductStockNegative)
	}

	return errs
}

// Clone возвращает глубокую копию товара: срезы не разделяются с оригиналом.
func (p Product) Clone() Product {
	out := p
	out.Images = slices.Clone(p.Images)
	out.Reviews = slices.Clone(p.Reviews)
	out.Details = slices.Clone(p.Details)
	out.Features = slices.Clone(p.Features)
	out.Materials = slices.Clone(p.Materials)
	out.Tags = slices.Clone(p.Tags)
	return out
}

// HasTag сообщает, помечен ли товар тегом tag.
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
