package finance

import "github.com/invoicing/backend/internal/domain/record"

// PaymentFields is the allow-list of payment domain fields.
type PaymentFields struct {
	InvoiceID record.Value `json:"invoiceId"`
	Amount    record.Value `json:"amount"`
	Method    record.Value `json:"method"`
	Date      record.Value `json:"date"`
	Note      record.Value `json:"note"`
	Advance   record.Value `json:"advance"` // paid ahead of any invoice
}

// PaymentKind stores payments in the "payments" collection.
var PaymentKind = record.DefineKind[PaymentFields]("payment", "payments", "payments")
