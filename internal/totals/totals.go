package totals

import (
	"github.com/shopspring/decimal"

	"billdesk/terminal/internal/domain"
)

var DefaultTaxRate = decimal.RequireFromString("0.18")

type Config struct {
	TaxRate   decimal.Decimal
	Discount  decimal.Decimal
	Shipping  decimal.Decimal
	Insurance decimal.Decimal
}

func DefaultConfig() Config {
	return Config{TaxRate: DefaultTaxRate}
}

// ConfigFor returns the per-variant configuration. Only proforma documents
// carry extra charges; service records are not taxed.
func ConfigFor(variant domain.Variant, charges domain.Charges) Config {
	switch variant {
	case domain.VariantProforma:
		return Config{
			TaxRate:   DefaultTaxRate,
			Discount:  charges.Discount,
			Shipping:  charges.Shipping,
			Insurance: charges.Insurance,
		}
	case domain.VariantService:
		return Config{TaxRate: decimal.Zero}
	default:
		return DefaultConfig()
	}
}

// Compute derives totals from items. Values are left unrounded; call
// Totals.Rounded for display.
func Compute(items []domain.LineItem, cfg Config) domain.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return fromSubtotal(subtotal, cfg)
}

// ComputeAmount applies the same formula to a single pre-summed amount, such
// as a service charge.
func ComputeAmount(amount decimal.Decimal, cfg Config) domain.Totals {
	return fromSubtotal(amount, cfg)
}

func fromSubtotal(subtotal decimal.Decimal, cfg Config) domain.Totals {
	discount := nonNegative(cfg.Discount)
	shipping := nonNegative(cfg.Shipping)
	insurance := nonNegative(cfg.Insurance)
	rate := nonNegative(cfg.TaxRate)

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(rate)

	return domain.Totals{
		Subtotal:    subtotal,
		Discount:    discount,
		TaxableBase: taxable,
		TaxRate:     rate,
		Tax:         tax,
		Shipping:    shipping,
		Insurance:   insurance,
		GrandTotal:  taxable.Add(tax).Add(shipping).Add(insurance),
	}
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
