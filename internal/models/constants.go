package models

const (
	// DefaultPageSize is the SyncJob limit when the trigger gives none.
	DefaultPageSize = 100

	// DefaultFeedPageSize is how many products the feed reads per page.
	DefaultFeedPageSize = 500

	// RetrySweepInterval between two retry sweeps, in seconds.
	RetrySweepInterval = 15 * 60

	// TokenCacheTTLSkew is subtracted from token lifetimes, in seconds, so a
	// cached token is never presented right at expiry.
	TokenCacheTTLSkew = 60
)

// Configuration keys resolved per scope with a global fallback.
const (
	SettingDataClientID                  = "dataClientId"
	SettingDataClientSecret              = "dataClientSecret"
	SettingEmailClientID                 = "emailClientId"
	SettingEmailClientSecret             = "emailClientSecret"
	SettingFTPUsername                   = "ftpUsername"
	SettingFTPPassword                   = "ftpPassword"
	SettingFTPHost                       = "ftpHost"
	SettingEnableOrderSync               = "enableOrderSync"
	SettingEnableCustomerSync            = "enableCustomerSync"
	SettingListID                        = "listId"
	SettingSalutationSegmentationFieldID = "salutationSegmentationFieldId"
	SettingFirstNameSegmentationFieldID  = "firstNameSegmentationFieldId"
	SettingLastNameSegmentationFieldID   = "lastNameSegmentationFieldId"
)
