package store

// Email message ENUMs
const (
	EmailMessageStatusNew       = "NEW"
	EmailMessageStatusReady     = "READY"
	EmailMessageStatusPending   = "PENDING"
	EmailMessageStatusSent      = "SENT"
	EmailMessageStatusDelivered = "DELIVERED"
	EmailMessageStatusOpened    = "OPENED"
	EmailMessageStatusBounced   = "BOUNCED"
	EmailMessageStatusSpam      = "SPAM"
	EmailMessageStatusCanceled  = "CANCELED"
	EmailMessageStatusError     = "ERROR"
)

// Email webhook ENUMs
const (
	EmailWebhookStatusNew       = "NEW"
	EmailWebhookStatusPending   = "PENDING"
	EmailWebhookStatusProcessed = "PROCESSED"
	EmailWebhookStatusError     = "ERROR"
)

// Webhook record types as posted by the provider
const (
	EmailWebhookTypeDelivery      = "Delivery"
	EmailWebhookTypeOpen          = "Open"
	EmailWebhookTypeBounce        = "Bounce"
	EmailWebhookTypeSpamComplaint = "SpamComplaint"
)

// Setting ENUMs
const (
	SettingTypeBool   = "bool"
	SettingTypeInt    = "int"
	SettingTypeString = "string"
)
