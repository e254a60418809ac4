package records

import (
	"github.com/invoicing/backend/internal/domain/catalog"
	"github.com/invoicing/backend/internal/domain/finance"
	"github.com/invoicing/backend/internal/domain/partner"
	"github.com/invoicing/backend/internal/domain/record"
	"github.com/invoicing/backend/internal/domain/trade"
)

// Routable returns the kinds that expose CRUD and sync operations.
func Routable() []record.Kind {
	return []record.Kind{
		partner.AssociateKind,
		catalog.ProductKind,
		finance.PaymentKind,
	}
}

// StorageOnly returns the kinds whose collections are opened but which have
// no operations.
func StorageOnly() []record.Kind {
	return []record.Kind{
		trade.InvoiceKind,
		trade.InvoiceItemKind,
	}
}

// Kinds returns every known kind.
func Kinds() []record.Kind {
	return append(Routable(), StorageOnly()...)
}
