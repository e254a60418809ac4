package catalog

import "github.com/invoicing/backend/internal/domain/record"

// ProductFields is the allow-list of product domain fields.
type ProductFields struct {
	ProductName       record.Value `json:"productName"`
	ProductCode       record.Value `json:"productCode"`
	Unit              record.Value `json:"unit"`
	Description       record.Value `json:"description"`
	SaleRate          record.Value `json:"saleRate"`
	BuyRate           record.Value `json:"buyRate"`
	OpeningStock      record.Value `json:"openingStock"`
	OpeningStockRate  record.Value `json:"openingStockRate"`
	MinAlertLevel     record.Value `json:"minAlertLevel"`
	OpeningStockValue record.Value `json:"openingStockValue"`
	EnableInventory   record.Value `json:"enableInventory"`
	Warehouse         record.Value `json:"warehouse"`
}

// ProductKind stores products in the "products" collection.
var ProductKind = record.DefineKind[ProductFields]("product", "products", "products")
