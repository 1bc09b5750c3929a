package mapper

import (
	"fmt"
	"strings"

	"listraksync/internal/models"
)

// Address flattens a host address. A nil address maps to all empty fields.
func Address(a *models.Address) models.ListrakAddress {
	if a == nil {
		return models.ListrakAddress{}
	}
	return models.ListrakAddress{
		Address1: a.Street,
		Address2: a.AdditionalAddressLine1,
		Address3: a.AdditionalAddressLine2,
		City:     a.City,
		State:    a.State,
		ZipCode:  a.Zipcode,
		Country:  strings.ToUpper(a.CountryISO),
		Phone:    a.Phone,
	}
}

func Customer(c models.Customer) (models.ListrakCustomer, error) {
	if c.Email == "" {
		return models.ListrakCustomer{}, fmt.Errorf("%w: customer %s has no email", models.ErrMapping, c.ID)
	}
	number := c.CustomerNumber
	if number == "" {
		number = c.ID
	}

	out := models.ListrakCustomer{
		CustomerNumber: number,
		Email:          c.Email,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Gender:         gender(c.Salutation),
		IsRegistered:   !c.Guest,
		Address:        Address(c.DefaultBillingAddress),
	}
	if c.Birthday != nil {
		out.Birthday = c.Birthday.UTC().Format("2006-01-02")
	}
	if !c.CreatedAt.IsZero() {
		out.RegisteredDate = c.CreatedAt.UTC().Format(dateTimeLayout)
	}
	return out, nil
}

// gender derives Listrak's single-letter gender from the salutation key.
func gender(salutation string) string {
	switch strings.ToLower(salutation) {
	case "mr":
		return "M"
	case "mrs", "ms":
		return "F"
	default:
		return ""
	}
}
