package mapper

import (
	"strconv"

	"listraksync/internal/models"
)

// ProductFeedHeader is the column set of the product feed, in file order.
var ProductFeedHeader = []string{
	"Sku", "Title", "Description", "Price", "SalePrice", "Brand", "Category",
	"SubCategory", "ImageURL", "LinkURL", "QOH", "InStock", "MasterSku",
}

// ProductRow maps a product to a feed row. A list price above the selling
// price makes the selling price the sale price.
func ProductRow(p models.Product) models.ProductFeedRow {
	price, salePrice := money(p.Price), ""
	if p.ListPrice != nil && p.ListPrice.GreaterThan(p.Price) {
		price, salePrice = money(*p.ListPrice), money(p.Price)
	}
	return models.ProductFeedRow{
		Sku:         p.ProductNumber,
		Title:       p.Name,
		Description: p.Description,
		Price:       price,
		SalePrice:   salePrice,
		Brand:       p.Manufacturer,
		Category:    p.Category,
		SubCategory: p.SubCategory,
		ImageURL:    p.ImageURL,
		LinkURL:     p.URL,
		QOH:         strconv.FormatInt(p.Stock, 10),
		InStock:     strconv.FormatBool(p.Active && p.Stock > 0),
		MasterSku:   p.ParentNumber,
	}
}

// Fields returns the row's values in ProductFeedHeader order.
func Fields(r models.ProductFeedRow) []string {
	return []string{
		r.Sku, r.Title, r.Description, r.Price, r.SalePrice, r.Brand, r.Category,
		r.SubCategory, r.ImageURL, r.LinkURL, r.QOH, r.InStock, r.MasterSku,
	}
}
