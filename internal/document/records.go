package document

import (
	"github.com/shopspring/decimal"

	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/totals"
)

// The functions below rebuild a printable document from a listing record so a
// receipt can be reprinted when the local journal has no copy.

func FromInvoiceRecord(rec domain.InvoiceRecord) domain.ConfirmedDocument {
	items := recordItems(rec.Items)
	return domain.ConfirmedDocument{
		Variant:        domain.VariantInvoice,
		DocumentNumber: rec.InvoiceNo,
		Customer:       domain.Customer{Name: rec.CustomerName, Phone: rec.CustomerPhone},
		Items:          items,
		Totals: domain.Totals{
			Subtotal:    rec.Subtotal,
			TaxableBase: rec.Subtotal,
			TaxRate:     totals.DefaultTaxRate,
			Tax:         rec.GSTAmount,
			GrandTotal:  rec.GrandTotal,
		}.Rounded(),
		CreatedAt: rec.CreatedAt,
	}
}

func FromProformaRecord(rec domain.ProformaRecord) domain.ConfirmedDocument {
	taxable := rec.Subtotal.Sub(rec.DiscountAmount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	return domain.ConfirmedDocument{
		Variant:        domain.VariantProforma,
		DocumentNumber: rec.ProformaNo,
		Customer:       domain.Customer{Name: rec.CustomerName, Phone: rec.CustomerPhone},
		Items:          recordItems(rec.Items),
		Charges: domain.Charges{
			Discount:  rec.DiscountAmount,
			Shipping:  rec.ShippingCharge,
			Insurance: rec.InsuranceCharge,
		},
		Totals: domain.Totals{
			Subtotal:    rec.Subtotal,
			Discount:    rec.DiscountAmount,
			TaxableBase: taxable,
			TaxRate:     totals.DefaultTaxRate,
			Tax:         rec.GSTAmount,
			Shipping:    rec.ShippingCharge,
			Insurance:   rec.InsuranceCharge,
			GrandTotal:  rec.GrandTotal,
		}.Rounded(),
		CreatedAt: rec.CreatedAt,
	}
}

func FromServiceRecord(rec domain.ServiceRecord) domain.ConfirmedDocument {
	t := totals.ComputeAmount(rec.ServicePrice, totals.ConfigFor(domain.VariantService, domain.Charges{}))
	return domain.ConfirmedDocument{
		Variant:        domain.VariantService,
		DocumentNumber: rec.Number(),
		ServiceID:      rec.ServiceID,
		Customer:       domain.Customer{Name: rec.CustomerName, Phone: rec.CustomerPhone},
		Service: &domain.ServiceCharge{
			Type:        rec.ServiceType,
			Description: rec.Issue,
			Price:       rec.ServicePrice,
		},
		Totals:    t.Rounded(),
		CreatedAt: rec.CreatedAt,
	}
}

func recordItems(in []domain.RecordItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(in))
	for _, item := range in {
		var productID int64
		if item.Product != nil {
			productID = item.Product.ID
		}
		out = append(out, domain.LineItem{
			ProductID:   productID,
			ProductName: item.DisplayName(),
			Quantity:    item.Quantity,
			UnitPrice:   item.Price,
		})
	}
	return out
}

// Summaries flattens the three record kinds into listing rows.

func SummaryOfInvoice(rec domain.InvoiceRecord) domain.DocumentSummary {
	return domain.DocumentSummary{
		Variant:       domain.VariantInvoice,
		Number:        rec.InvoiceNo,
		CustomerName:  rec.CustomerName,
		CustomerPhone: rec.CustomerPhone,
		GrandTotal:    rec.GrandTotal,
		CreatedAt:     rec.CreatedAt,
	}
}

func SummaryOfProforma(rec domain.ProformaRecord) domain.DocumentSummary {
	return domain.DocumentSummary{
		Variant:       domain.VariantProforma,
		Number:        rec.ProformaNo,
		CustomerName:  rec.CustomerName,
		CustomerPhone: rec.CustomerPhone,
		GrandTotal:    rec.GrandTotal,
		CreatedAt:     rec.CreatedAt,
	}
}

func SummaryOfService(rec domain.ServiceRecord) domain.DocumentSummary {
	return domain.DocumentSummary{
		Variant:       domain.VariantService,
		Number:        rec.Number(),
		CustomerName:  rec.CustomerName,
		CustomerPhone: rec.CustomerPhone,
		GrandTotal:    rec.ServicePrice,
		CreatedAt:     rec.CreatedAt,
	}
}

func SummaryOf(doc domain.ConfirmedDocument) domain.DocumentSummary {
	return domain.DocumentSummary{
		Variant:       doc.Variant,
		Number:        doc.DocumentNumber,
		CustomerName:  doc.Customer.Name,
		CustomerPhone: doc.Customer.Phone,
		GrandTotal:    doc.Totals.GrandTotal,
		CreatedAt:     doc.CreatedAt,
	}
}
