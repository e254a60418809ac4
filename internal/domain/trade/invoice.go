// Package trade declares invoice storage. Invoices and their line items are
// kept per account like the other kinds, but no operations are exposed for
// them yet.
package trade

import "github.com/invoicing/backend/internal/domain/record"

// InvoiceFields is the allow-list of invoice domain fields.
type InvoiceFields struct {
	InvoiceNumber record.Value `json:"invoiceNumber"`
	AssociateID   record.Value `json:"associateId"`
	Date          record.Value `json:"date"`
	DueDate       record.Value `json:"dueDate"`
	Total         record.Value `json:"total"`
	Discount      record.Value `json:"discount"`
	Tax           record.Value `json:"tax"`
	Status        record.Value `json:"status"`
	Note          record.Value `json:"note"`
}

// InvoiceItemFields is the allow-list of invoice line item fields.
type InvoiceItemFields struct {
	InvoiceID record.Value `json:"invoiceId"`
	ProductID record.Value `json:"productId"`
	Quantity  record.Value `json:"quantity"`
	Rate      record.Value `json:"rate"`
	Amount    record.Value `json:"amount"`
}

var (
	// InvoiceKind stores invoices in the "invoices" collection.
	InvoiceKind = record.DefineKind[InvoiceFields]("invoice", "invoices", "invoices")
	// InvoiceItemKind stores line items in the "invoiceItems" collection.
	InvoiceItemKind = record.DefineKind[InvoiceItemFields]("invoiceItem", "invoiceItems", "invoiceItems")
)
