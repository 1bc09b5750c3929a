package mapper

import (
	"fmt"
	"strings"
	"time"

	"listraksync/internal/models"

	"github.com/shopspring/decimal"
)

const dateTimeLayout = time.RFC3339

// Order statuses in the Listrak vocabulary.
const (
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusCompleted  = "Completed"
	StatusCanceled   = "Canceled"
	StatusUnknown    = "Unknown"
)

var orderStatuses = map[string]string{
	"open":        StatusPending,
	"in_progress": StatusProcessing,
	"completed":   StatusCompleted,
	"cancelled":   StatusCanceled,
}

// OrderStatus translates an order state technical name.
func OrderStatus(technicalName string) string {
	if status, ok := orderStatuses[technicalName]; ok {
		return status
	}
	return StatusUnknown
}

// SKU returns a stable identifier for a line item. Only product lines carry a
// catalog number; every other type gets a synthetic id built from the line id.
func SKU(item models.LineItem) string {
	switch strings.ToLower(item.Type) {
	case models.LineItemProduct:
		return item.ProductNumber
	case models.LineItemContainer:
		return "CONTAINER_ITEM_" + item.ID
	case models.LineItemDiscount:
		return "DISCOUNT_ITEM_" + item.ID
	case models.LineItemPromotion:
		return "PROMOTION_ITEM_" + item.ID
	case models.LineItemCredit:
		return "CREDIT_ITEM_" + item.ID
	default:
		return "CUSTOM_ITEM_" + item.ID
	}
}

// ItemDiscountTotal is (listPrice - discountedPrice) * quantity, zero when
// either price is absent.
func ItemDiscountTotal(item models.LineItem) decimal.Decimal {
	if item.ListPrice == nil || item.DiscountedPrice == nil {
		return decimal.Zero
	}
	return item.ListPrice.Sub(*item.DiscountedPrice).Mul(decimal.NewFromInt(item.Quantity))
}

// ItemTotal is unitPrice * quantity minus the item discount total.
func ItemTotal(item models.LineItem) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)).Sub(ItemDiscountTotal(item))
}

func Order(order models.Order) (models.ListrakOrder, error) {
	if order.OrderNumber == "" {
		return models.ListrakOrder{}, fmt.Errorf("%w: order %s has no order number", models.ErrMapping, order.ID)
	}
	if order.Customer.Email == "" {
		return models.ListrakOrder{}, fmt.Errorf("%w: order %s has no customer email", models.ErrMapping, order.OrderNumber)
	}

	status := OrderStatus(order.StateTechnicalName)
	items := make([]models.ListrakOrderItem, 0, len(order.LineItems))
	orderItemTotal := decimal.Zero
	for _, li := range order.LineItems {
		total := ItemTotal(li)
		orderItemTotal = orderItemTotal.Add(total)

		item := models.ListrakOrderItem{
			Sku:           SKU(li),
			Quantity:      li.Quantity,
			Price:         money(li.UnitPrice),
			ItemTotal:     money(total),
			DiscountTotal: money(ItemDiscountTotal(li)),
			Status:        status,
		}
		if li.DiscountedPrice != nil {
			item.DiscountedPrice = money(*li.DiscountedPrice)
		}
		items = append(items, item)
	}

	return models.ListrakOrder{
		OrderNumber:     order.OrderNumber,
		CustomerNumber:  order.Customer.CustomerNumber,
		Email:           order.Customer.Email,
		DateEntered:     order.OrderDateTime.UTC().Format(dateTimeLayout),
		Status:          status,
		OrderTotal:      money(order.AmountTotal),
		ItemTotal:       money(orderItemTotal),
		TaxTotal:        money(order.AmountTotal.Sub(order.AmountNet)),
		ShippingTotal:   money(order.ShippingTotal),
		BillingAddress:  Address(order.BillingAddress),
		ShippingAddress: Address(order.ShippingAddress),
		Items:           items,
	}, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
