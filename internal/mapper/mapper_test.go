package mapper

import (
	"testing"
	"time"

	"listraksync/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestSKU(t *testing.T) {
	tests := []struct {
		item models.LineItem
		want string
	}{
		{models.LineItem{ID: "1", Type: "product", ProductNumber: "ABC123"}, "ABC123"},
		{models.LineItem{ID: "1", Type: "PRODUCT", ProductNumber: "ABC123"}, "ABC123"},
		{models.LineItem{ID: "xyz", Type: "discount"}, "DISCOUNT_ITEM_xyz"},
		{models.LineItem{ID: "xyz", Type: "DISCOUNT"}, "DISCOUNT_ITEM_xyz"},
		{models.LineItem{ID: "c1", Type: "container"}, "CONTAINER_ITEM_c1"},
		{models.LineItem{ID: "p1", Type: "promotion"}, "PROMOTION_ITEM_p1"},
		{models.LineItem{ID: "k1", Type: "credit"}, "CREDIT_ITEM_k1"},
		{models.LineItem{ID: "z1", Type: "giftcard"}, "CUSTOM_ITEM_z1"},
		{models.LineItem{ID: "z2"}, "CUSTOM_ITEM_z2"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SKU(tt.item))
		})
	}
}

func TestOrderStatus(t *testing.T) {
	assert.Equal(t, "Pending", OrderStatus("open"))
	assert.Equal(t, "Processing", OrderStatus("in_progress"))
	assert.Equal(t, "Completed", OrderStatus("completed"))
	assert.Equal(t, "Canceled", OrderStatus("cancelled"))
	assert.Equal(t, "Unknown", OrderStatus("foo"))
	assert.Equal(t, "Unknown", OrderStatus(""))
}

func sampleOrder() models.Order {
	return models.Order{
		ID:                 "o-1",
		OrderNumber:        "10001",
		OrderDateTime:      time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC),
		StateTechnicalName: "in_progress",
		AmountTotal:        dec("59.50"),
		AmountNet:          dec("50.00"),
		ShippingTotal:      dec("4.95"),
		Customer:           models.OrderCustomer{CustomerNumber: "C-7", Email: "jane@example.com"},
		BillingAddress:     &models.Address{Street: "Main 1", City: "Berlin", Zipcode: "10115", CountryISO: "de"},
		LineItems: []models.LineItem{
			{ID: "l1", Type: "product", ProductNumber: "ABC123", Quantity: 2, UnitPrice: dec("20.00"), ListPrice: decPtr("25.00"), DiscountedPrice: decPtr("20.00")},
			{ID: "l2", Type: "product", ProductNumber: "DEF456", Quantity: 1, UnitPrice: dec("10.00")},
			{ID: "xyz", Type: "discount", Quantity: 1, UnitPrice: dec("-5.00")},
		},
	}
}

func TestOrder(t *testing.T) {
	out, err := Order(sampleOrder())
	require.NoError(t, err)

	assert.Equal(t, "10001", out.OrderNumber)
	assert.Equal(t, "C-7", out.CustomerNumber)
	assert.Equal(t, "Processing", out.Status)
	assert.Equal(t, "2025-03-04T10:30:00Z", out.DateEntered)
	assert.Equal(t, "59.50", out.OrderTotal)
	assert.Equal(t, "9.50", out.TaxTotal)
	assert.Equal(t, "4.95", out.ShippingTotal)

	require.Len(t, out.Items, 3)
	// 20*2 - (25-20)*2
	assert.Equal(t, "30.00", out.Items[0].ItemTotal)
	assert.Equal(t, "10.00", out.Items[0].DiscountTotal)
	assert.Equal(t, "20.00", out.Items[0].DiscountedPrice)
	assert.Equal(t, "10.00", out.Items[1].ItemTotal)
	assert.Equal(t, "0.00", out.Items[1].DiscountTotal)
	assert.Equal(t, "", out.Items[1].DiscountedPrice)
	assert.Equal(t, "DISCOUNT_ITEM_xyz", out.Items[2].Sku)
	assert.Equal(t, "-5.00", out.Items[2].ItemTotal)
	assert.Equal(t, "35.00", out.ItemTotal)

	assert.Equal(t, "DE", out.BillingAddress.Country)
	assert.Equal(t, models.ListrakAddress{}, out.ShippingAddress)
}

func TestOrderDeterministic(t *testing.T) {
	first, err := Order(sampleOrder())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Order(sampleOrder())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestOrderMappingErrors(t *testing.T) {
	o := sampleOrder()
	o.OrderNumber = ""
	_, err := Order(o)
	assert.ErrorIs(t, err, models.ErrMapping)

	o = sampleOrder()
	o.Customer.Email = ""
	_, err = Order(o)
	assert.ErrorIs(t, err, models.ErrMapping)
}

func TestItemDiscountTotalNeedsBothPrices(t *testing.T) {
	item := models.LineItem{Quantity: 3, UnitPrice: dec("10"), ListPrice: decPtr("12")}
	assert.True(t, ItemDiscountTotal(item).IsZero())
	assert.True(t, ItemTotal(item).Equal(dec("30")))
}

func TestCustomer(t *testing.T) {
	birthday := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	out, err := Customer(models.Customer{
		ID:             "c-1",
		CustomerNumber: "C-1",
		Email:          "jane@example.com",
		Salutation:     "mrs",
		FirstName:      "Jane",
		LastName:       "Doe",
		Birthday:       &birthday,
		CreatedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		DefaultBillingAddress: &models.Address{
			Street: "Main 1", AdditionalAddressLine1: "c/o Smith", City: "Berlin", Zipcode: "10115", CountryISO: "de",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "C-1", out.CustomerNumber)
	assert.Equal(t, "F", out.Gender)
	assert.Equal(t, "1990-05-17", out.Birthday)
	assert.Equal(t, "2024-01-02T03:04:05Z", out.RegisteredDate)
	assert.True(t, out.IsRegistered)
	assert.Equal(t, models.ListrakAddress{
		Address1: "Main 1", Address2: "c/o Smith", City: "Berlin", ZipCode: "10115", Country: "DE",
	}, out.Address)
}

func TestCustomerDefaults(t *testing.T) {
	out, err := Customer(models.Customer{ID: "c-2", Email: "guest@example.com", Guest: true})
	require.NoError(t, err)

	assert.Equal(t, "c-2", out.CustomerNumber)
	assert.Equal(t, "", out.Birthday)
	assert.Equal(t, "", out.RegisteredDate)
	assert.False(t, out.IsRegistered)
	assert.Equal(t, models.ListrakAddress{}, out.Address)

	_, err = Customer(models.Customer{ID: "c-3"})
	assert.ErrorIs(t, err, models.ErrMapping)
}

func TestContactSubscriptionState(t *testing.T) {
	for status, want := range map[string]string{
		models.NewsletterDirect:       "Subscribed",
		models.NewsletterUnsubscribed: "Unsubscribed",
		models.NewsletterOptIn:        "Unsubscribed",
		models.NewsletterNotSet:       "Unsubscribed",
		"":                            "Unsubscribed",
	} {
		c := Contact(models.NewsletterRecipient{Email: "a@b.c", Status: status}, SegmentationFields{})
		assert.Equal(t, want, c.SubscriptionState, status)
		assert.Empty(t, c.SegmentationFieldValues)
	}
}

// All configured segmentation fields are sent; none overwrites another.
func TestContactAppendsEverySegmentationField(t *testing.T) {
	r := models.NewsletterRecipient{
		ID: "n-1", Email: "a@b.c", Status: models.NewsletterDirect,
		Salutation: "mr", FirstName: "John", LastName: "Smith",
	}

	c := Contact(r, SegmentationFields{Salutation: "11", FirstName: "12", LastName: "13"})
	assert.Equal(t, []models.SegmentationFieldValue{
		{SegmentationFieldID: "11", Value: "mr"},
		{SegmentationFieldID: "12", Value: "John"},
		{SegmentationFieldID: "13", Value: "Smith"},
	}, c.SegmentationFieldValues)

	c = Contact(r, SegmentationFields{FirstName: "12"})
	assert.Equal(t, []models.SegmentationFieldValue{{SegmentationFieldID: "12", Value: "John"}}, c.SegmentationFieldValues)
	assert.Equal(t, "n-1", c.ExternalContactID)
}

func TestProductRow(t *testing.T) {
	row := ProductRow(models.Product{
		ProductNumber: "SW-1", ParentNumber: "SW", Name: "Shirt", Manufacturer: "Acme",
		Price: dec("19.99"), ListPrice: decPtr("29.99"), Stock: 4, Active: true,
	})
	assert.Equal(t, "29.99", row.Price)
	assert.Equal(t, "19.99", row.SalePrice)
	assert.Equal(t, "4", row.QOH)
	assert.Equal(t, "true", row.InStock)
	assert.Equal(t, "SW", row.MasterSku)
	assert.Len(t, Fields(row), len(ProductFeedHeader))

	row = ProductRow(models.Product{ProductNumber: "SW-2", Price: dec("5"), Active: true})
	assert.Equal(t, "5.00", row.Price)
	assert.Equal(t, "", row.SalePrice)
	assert.Equal(t, "false", row.InStock)
}
