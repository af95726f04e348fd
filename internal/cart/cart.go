// Package cart holds the in-memory line-item collection for one document.
// Stock checks here are advisory against the catalog snapshot; the billing
// server remains the authority.
package cart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"billdesk/terminal/internal/domain"
)

// Collection is an ordered set of line items, at most one per product.
// It is not safe for concurrent use; the owning session serializes access.
type Collection struct {
	items []domain.LineItem
}

func New() *Collection {
	return &Collection{}
}

// Add adds quantity units of product at its selling price.
func (c *Collection) Add(product domain.Product, quantity int) ([]domain.LineItem, error) {
	return c.AddAtPrice(product, quantity, product.SellingPrice)
}

// AddAtPrice merges into the product's existing row or appends a new one.
// An existing row keeps the unit price it was first added with. On error the
// collection is unchanged.
func (c *Collection) AddAtPrice(product domain.Product, quantity int, unitPrice decimal.Decimal) ([]domain.LineItem, error) {
	if quantity <= 0 {
		return c.Items(), domain.ErrInvalidQuantity
	}
	if !unitPrice.IsPositive() {
		return c.Items(), domain.ErrInvalidPrice
	}
	if product.Stock <= 0 {
		return c.Items(), domain.Detail(domain.ErrOutOfStock, "%s is out of stock", product.Name)
	}

	idx := c.indexOf(product.ID)
	existing := 0
	if idx >= 0 {
		existing = c.items[idx].Quantity
	}
	if quantity > product.Stock-existing {
		return c.Items(), domain.Detail(domain.ErrExceedsAvailable,
			"only %d of %s available (%d already in cart)", product.Stock, product.Name, existing)
	}

	if idx >= 0 {
		c.items[idx].Quantity += quantity
		return c.Items(), nil
	}
	c.items = append(c.items, domain.LineItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	})
	return c.Items(), nil
}

func (c *Collection) Remove(index int) ([]domain.LineItem, error) {
	if index < 0 || index >= len(c.items) {
		return c.Items(), domain.Detail(domain.ErrIndexOutOfRange, "no item at position %d", index)
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	return c.Items(), nil
}

func (c *Collection) Clear() {
	c.items = nil
}

// Items returns a copy in insertion order.
func (c *Collection) Items() []domain.LineItem {
	out := make([]domain.LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection) Len() int {
	return len(c.items)
}

func (c *Collection) QuantityOf(productID int64) int {
	if idx := c.indexOf(productID); idx >= 0 {
		return c.items[idx].Quantity
	}
	return 0
}

func (c *Collection) indexOf(productID int64) int {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// ParseQuantity accepts a positive whole number typed by an operator.
func ParseQuantity(raw string) (int, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || qty <= 0 {
		return 0, domain.Detail(domain.ErrInvalidQuantity, "invalid quantity %q", raw)
	}
	return qty, nil
}

// ParsePrice accepts a positive finite decimal amount.
func ParsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !price.IsPositive() {
		return decimal.Zero, domain.Detail(domain.ErrInvalidPrice, "invalid price %q", raw)
	}
	return price, nil
}

// ParseCharge accepts an empty string as zero, otherwise a non-negative amount.
func ParseCharge(name string, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, domain.Detail(domain.ErrInvalidCharge, "invalid %s %q", name, raw)
	}
	return amount, nil
}

func (c *Collection) String() string {
	return fmt.Sprintf("cart(%d items)", len(c.items))
}
