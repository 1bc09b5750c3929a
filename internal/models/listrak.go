package models

// Records shaped for the Listrak Data and Email APIs.

type ListrakAddress struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	Address3 string `json:"address3"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type ListrakCustomer struct {
	CustomerNumber string         `json:"customerNumber"`
	Email          string         `json:"email"`
	FirstName      string         `json:"firstName"`
	LastName       string         `json:"lastName"`
	Gender         string         `json:"gender"`
	Birthday       string         `json:"birthday"`
	RegisteredDate string         `json:"registeredDate"`
	IsRegistered   bool           `json:"isRegistered"`
	Address        ListrakAddress `json:"address"`
}

type ListrakOrderItem struct {
	Sku             string `json:"sku"`
	Quantity        int64  `json:"quantity"`
	Price           string `json:"price"`
	DiscountedPrice string `json:"discountedPrice"`
	ItemTotal       string `json:"itemTotal"`
	DiscountTotal   string `json:"itemDiscountTotal"`
	Status          string `json:"status"`
}

type ListrakOrder struct {
	OrderNumber     string             `json:"orderNumber"`
	CustomerNumber  string             `json:"customerNumber"`
	Email           string             `json:"email"`
	DateEntered     string             `json:"dateEntered"`
	Status          string             `json:"status"`
	OrderTotal      string             `json:"orderTotal"`
	ItemTotal       string             `json:"itemTotal"`
	TaxTotal        string             `json:"taxTotal"`
	ShippingTotal   string             `json:"shippingTotal"`
	BillingAddress  ListrakAddress     `json:"billingAddress"`
	ShippingAddress ListrakAddress     `json:"shippingAddress"`
	Items           []ListrakOrderItem `json:"items"`
}

type SegmentationFieldValue struct {
	SegmentationFieldID string `json:"segmentationFieldId"`
	Value               string `json:"value"`
}

type ListrakContact struct {
	EmailAddress            string                   `json:"emailAddress"`
	SubscriptionState       string                   `json:"subscriptionState"`
	ExternalContactID       string                   `json:"externalContactID"`
	SegmentationFieldValues []SegmentationFieldValue `json:"segmentationFieldValues,omitempty"`
}

// ProductFeedRow is one line of the product feed file.
type ProductFeedRow struct {
	Sku         string
	Title       string
	Description string
	Price       string
	SalePrice   string
	Brand       string
	Category    string
	SubCategory string
	ImageURL    string
	LinkURL     string
	QOH         string
	InStock     string
	MasterSku   string
}
