package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scope is a sales channel. Credentials and flags resolve per scope with a
// global fallback.
type Scope struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Address struct {
	Company                string `json:"company,omitempty"`
	FirstName              string `json:"first_name,omitempty"`
	LastName               string `json:"last_name,omitempty"`
	Street                 string `json:"street,omitempty"`
	AdditionalAddressLine1 string `json:"additional_address_line1,omitempty"`
	AdditionalAddressLine2 string `json:"additional_address_line2,omitempty"`
	City                   string `json:"city,omitempty"`
	Zipcode                string `json:"zipcode,omitempty"`
	State                  string `json:"state,omitempty"`
	CountryISO             string `json:"country_iso,omitempty"`
	Phone                  string `json:"phone,omitempty"`
}

type Customer struct {
	ID                    string     `json:"id"`
	ScopeID               string     `json:"scope_id"`
	CustomerNumber        string     `json:"customer_number"`
	Email                 string     `json:"email"`
	Salutation            string     `json:"salutation,omitempty"`
	FirstName             string     `json:"first_name,omitempty"`
	LastName              string     `json:"last_name,omitempty"`
	Birthday              *time.Time `json:"birthday,omitempty"`
	Guest                 bool       `json:"guest"`
	CreatedAt             time.Time  `json:"created_at"`
	DefaultBillingAddress *Address   `json:"default_billing_address,omitempty"`
}

// Line item types as the commerce platform names them.
const (
	LineItemProduct   = "product"
	LineItemContainer = "container"
	LineItemDiscount  = "discount"
	LineItemPromotion = "promotion"
	LineItemCredit    = "credit"
	LineItemCustom    = "custom"
)

type LineItem struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	Label           string           `json:"label"`
	ProductNumber   string           `json:"product_number,omitempty"`
	Quantity        int64            `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	ListPrice       *decimal.Decimal `json:"list_price,omitempty"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price,omitempty"`
}

type OrderCustomer struct {
	CustomerNumber string `json:"customer_number"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
}

type Order struct {
	ID                 string          `json:"id"`
	ScopeID            string          `json:"scope_id"`
	OrderNumber        string          `json:"order_number"`
	OrderDateTime      time.Time       `json:"order_date_time"`
	StateTechnicalName string          `json:"state"`
	AmountTotal        decimal.Decimal `json:"amount_total"`
	AmountNet          decimal.Decimal `json:"amount_net"`
	ShippingTotal      decimal.Decimal `json:"shipping_total"`
	Customer           OrderCustomer   `json:"customer"`
	BillingAddress     *Address        `json:"billing_address,omitempty"`
	ShippingAddress    *Address        `json:"shipping_address,omitempty"`
	LineItems          []LineItem      `json:"line_items"`
}

// Newsletter recipient statuses.
const (
	NewsletterDirect       = "direct"
	NewsletterOptIn        = "optIn"
	NewsletterNotSet       = "notSet"
	NewsletterUnsubscribed = "unsubscribed"
)

type NewsletterRecipient struct {
	ID         string `json:"id"`
	ScopeID    string `json:"scope_id"`
	Email      string `json:"email"`
	Status     string `json:"status"`
	Salutation string `json:"salutation,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

type Product struct {
	ID            string           `json:"id"`
	ScopeID       string           `json:"scope_id"`
	ProductNumber string           `json:"product_number"`
	ParentNumber  string           `json:"parent_number,omitempty"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Manufacturer  string           `json:"manufacturer,omitempty"`
	Category      string           `json:"category,omitempty"`
	SubCategory   string           `json:"sub_category,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	ListPrice     *decimal.Decimal `json:"list_price,omitempty"`
	Stock         int64            `json:"stock"`
	Active        bool             `json:"active"`
	ImageURL      string           `json:"image_url,omitempty"`
	URL           string           `json:"url,omitempty"`
}
