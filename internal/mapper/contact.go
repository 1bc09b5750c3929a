package mapper

import "listraksync/internal/models"

const (
	SubscriptionSubscribed   = "Subscribed"
	SubscriptionUnsubscribed = "Unsubscribed"
)

// SegmentationFields are the configured Listrak segmentation field ids. An
// empty id means the field is not sent.
type SegmentationFields struct {
	Salutation string
	FirstName  string
	LastName   string
}

// SubscriptionState maps a newsletter recipient status. Only direct
// subscriptions count as subscribed.
func SubscriptionState(status string) string {
	if status == models.NewsletterDirect {
		return SubscriptionSubscribed
	}
	return SubscriptionUnsubscribed
}

// Contact maps a newsletter recipient. Every configured segmentation field
// gets its own value, in salutation, first name, last name order.
func Contact(r models.NewsletterRecipient, fields SegmentationFields) models.ListrakContact {
	contact := models.ListrakContact{
		EmailAddress:      r.Email,
		SubscriptionState: SubscriptionState(r.Status),
		ExternalContactID: r.ID,
	}

	values := []struct{ id, value string }{
		{fields.Salutation, r.Salutation},
		{fields.FirstName, r.FirstName},
		{fields.LastName, r.LastName},
	}
	for _, v := range values {
		if v.id == "" {
			continue
		}
		contact.SegmentationFieldValues = append(contact.SegmentationFieldValues, models.SegmentationFieldValue{
			SegmentationFieldID: v.id,
			Value:               v.value,
		})
	}
	return contact
}
