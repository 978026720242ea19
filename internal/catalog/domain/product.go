package domain

import "errors"

// DefaultMaxQuantity caps a single add when the product declares no stock.
const DefaultMaxQuantity = 99

var ErrProductNotFound = errors.New("product not found")

// Product is an immutable catalog record. Price is in minor units of Currency.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Currency    string   `json:"currency"`
	Image       string   `json:"image"`
	Images      []string `json:"images,omitempty"`
	Category    string   `json:"category"`
	Slug        string   `json:"slug"`
	Colors      []string `json:"colors,omitempty"`
	Sizes       []string `json:"sizes,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
}

type Category struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ImageList returns the gallery, falling back to the main image.
func (p *Product) ImageList() []string {
	if len(p.Images) > 0 {
		return p.Images
	}
	if p.Image == "" {
		return nil
	}
	return []string{p.Image}
}

// HasColor reports whether color may be selected. The empty selection is
// always allowed.
func (p *Product) HasColor(color string) bool {
	return color == "" || contains(p.Colors, color)
}

func (p *Product) HasSize(size string) bool {
	return size == "" || contains(p.Sizes, size)
}

func (p *Product) MaxQuantity() int {
	if p.Stock != nil && *p.Stock > 0 {
		return *p.Stock
	}
	return DefaultMaxQuantity
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
