// Package catalog хранит статический каталог товаров витрины.
// Каталог собирается при сборке (встроенный JSON) и во время работы не меняется.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

const defaultRelatedLimit = 3

//go:embed data/products.json
var productsJSON []byte

// Catalog — неизменяемый список товаров с индексом по идентификатору.
type Catalog struct {
	products []domain.Product
	byID     map[string]int
}

// Default возвращает каталог, встроенный в бинарь.
func Default() (*Catalog, error) {
	return Load(productsJSON)
}

// Load разбирает каталог из JSON и проверяет инварианты каждой карточки.
func Load(data []byte) (*Catalog, error) {
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		products: make([]domain.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for idx, p := range products {
		if errs := p.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("catalog product[%d] %q: %w", idx, p.ID, errors.Join(errs...))
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog product[%d]: duplicate id %q", idx, p.ID)
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}

	return c, nil
}

// Get возвращает копию товара или ErrProductNotFound.
func (c *Catalog) Get(id string) (domain.Product, error) {
	idx, ok := c.byID[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return c.products[idx].Clone(), nil
}

// List возвращает копии всех товаров в порядке каталога.
func (c *Catalog) List() []domain.Product {
	return c.filter(func(domain.Product) bool { return true }, 0)
}

// Featured возвращает товары, отмеченные для главной страницы.
func (c *Catalog) Featured() []domain.Product {
	return c.filter(func(p domain.Product) bool { return p.Featured }, 0)
}

// ByCategory возвращает товары указанной категории.
func (c *Catalog) ByCategory(category string) []domain.Product {
	return c.filter(func(p domain.Product) bool { return p.Category == category }, 0)
}

// Related подбирает похожие товары: та же категория или хотя бы один общий тег.
// limit <= 0 означает лимит по умолчанию (3).
func (c *Catalog) Related(id string, limit int) []domain.Product {
	current, ok := c.byID[id]
	if !ok {
		return nil
	}
	if limit <= 0 {
		limit = defaultRelatedLimit
	}

	base := c.products[current]
	return c.filter(func(p domain.Product) bool {
		if p.ID == base.ID {
			return false
		}
		if p.Category == base.Category {
			return true
		}
		for _, tag := range p.Tags {
			if base.HasTag(tag) {
				return true
			}
		}
		return false
	}, limit)
}

func (c *Catalog) filter(keep func(domain.Product) bool, limit int) []domain.Product {
	result := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		if !keep(p) {
			continue
		}
		result = append(result, p.Clone())
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

var _ domain.ProductCatalog = (*Catalog)(nil)
