package cart

import (
	"fmt"
	"strings"

	"github.com/noah-isme/kitstore/internal/pricing"
)

// Size is a kit size. Every kit is offered in the same fixed set.
type Size string

const (
	SizeS  Size = "S"
	SizeM  Size = "M"
	SizeL  Size = "L"
	SizeXL Size = "XL"
)

// Sizes lists the sizes offered for every kit in display order.
var Sizes = []Size{SizeS, SizeM, SizeL, SizeXL}

// ParseSize normalises user input into a Size.
func ParseSize(s string) (Size, error) {
	candidate := Size(strings.ToUpper(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown size %q", s)
}

// Valid reports whether s is one of the offered sizes.
func (s Size) Valid() bool {
	switch s {
	case SizeS, SizeM, SizeL, SizeXL:
		return true
	default:
		return false
	}
}

// Product is a kit record as served by the store API.
type Product struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Team        string        `json:"team"`
	Price       pricing.Money `json:"price"`
	Stock       int           `json:"stock"`
	Description string        `json:"description,omitempty"`
	ImageURL    string        `json:"imageUrl,omitempty"`
	Season      string        `json:"season,omitempty"`
}

// Item is one cart line. LineID identifies the line, not the product, so the
// same product and size can be added more than once.
type Item struct {
	LineID    int64         `json:"lineId"`
	ProductID int64         `json:"productId"`
	Name      string        `json:"name"`
	Team      string        `json:"team"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Size      Size          `json:"size"`
}
