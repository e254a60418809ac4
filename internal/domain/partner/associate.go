package partner

import "github.com/invoicing/backend/internal/domain/record"

// AssociateFields is the allow-list of associate domain fields.
// An associate is a client or a supplier of the account owner.
type AssociateFields struct {
	OrganizationName record.Value `json:"organizationName"`
	Email            record.Value `json:"email"`
	Address          record.Value `json:"address"`
	Contact          record.Value `json:"contact"`
	OpeningBalance   record.Value `json:"openingBalance"`
	ClientName       record.Value `json:"clientName"`
	SupplierName     record.Value `json:"supplierName"`
	ShippingAddress  record.Value `json:"shippingAddress"`
	TaxID            record.Value `json:"taxId"`
	BusinessDetail   record.Value `json:"businessDetail"`
	AssociateType    record.Value `json:"associateType"` // client or supplier, as sent by the app
	UnpaidCount      record.Value `json:"unpaidCount"`
	TotalCount       record.Value `json:"totalCount"`
	Balance          record.Value `json:"balance"`
}

// AssociateKind stores associates in the "associates" collection.
var AssociateKind = record.DefineKind[AssociateFields]("associate", "associates", "associates")
