package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for JSONB")
	}

	// Handle empty or null JSON
	if len(bytes) == 0 || string(bytes) == "null" {
		*j = make(JSONB)
		return nil
	}

	result := make(JSONB)
	err := json.Unmarshal(bytes, &result)
	if err != nil {
		return err
	}
	*j = result
	return nil
}

// StringMap is a custom type for string-to-string JSONB columns (e.g. headers)
type StringMap map[string]string

// Value implements the driver.Valuer interface for StringMap
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for StringMap
func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for StringMap")
	}

	if len(bytes) == 0 || string(bytes) == "null" {
		*m = make(StringMap)
		return nil
	}

	result := make(StringMap)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*m = result
	return nil
}

// EmailMessage represents one unit of outbound email intent
type EmailMessage struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	ProviderMessageID *string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	SenderName        string     `db:"sender_name" json:"sender_name"`
	SenderEmail       string     `db:"sender_email" json:"sender_email"`
	ToName            string     `db:"to_name" json:"to_name"`
	ToEmail           string     `db:"to_email" json:"to_email"`
	ReplyToName       string     `db:"reply_to_name" json:"reply_to_name"`
	ReplyToEmail      string     `db:"reply_to_email" json:"reply_to_email"`
	Subject           string     `db:"subject" json:"subject"`
	TemplatePrefix    string     `db:"template_prefix" json:"template_prefix"`
	TemplateContext   JSONB      `db:"template_context" json:"template_context"`
	MessageStream     string     `db:"message_stream" json:"message_stream"`
	CreatedByID       *uuid.UUID `db:"created_by_id" json:"created_by_id,omitempty"`
	OrgID             *uuid.UUID `db:"org_id" json:"org_id,omitempty"`
	Status            string     `db:"status" json:"status"`
	ErrorMessage      *string    `db:"error_message" json:"error_message,omitempty"`
	SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// EmailMessageAttachment represents a stored attachment owned by a message
type EmailMessageAttachment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	EmailMessageID uuid.UUID `db:"email_message_id" json:"email_message_id"`
	Filename       string    `db:"filename" json:"filename"`
	MimeType       string    `db:"mime_type" json:"mime_type"`
	BlobKey        string    `db:"blob_key" json:"blob_key"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// EmailMessageWebhook represents a raw provider callback preserved verbatim.
// Body and headers are never mutated after insert.
type EmailMessageWebhook struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Body           JSONB      `db:"body" json:"body"`
	Headers        StringMap  `db:"headers" json:"headers"`
	Type           *string    `db:"type" json:"type,omitempty"`
	EmailMessageID *uuid.UUID `db:"email_message_id" json:"email_message_id,omitempty"`
	Status         string     `db:"status" json:"status"`
	Note           *string    `db:"note" json:"note,omitempty"`
	ReceivedAt     time.Time  `db:"received_at" json:"received_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// GlobalSetting is a single scalar applied process-wide
type GlobalSetting struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Type      string    `db:"type" json:"type"`
	Value     string    `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrgSetting is an org-scoped setting definition
type OrgSetting struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Type      string    `db:"type" json:"type"`
	Default   string    `db:"default_value" json:"default"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PlanOrgSetting is an org setting value attached to a plan
type PlanOrgSetting struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PlanID    uuid.UUID `db:"plan_id" json:"plan_id"`
	SettingID uuid.UUID `db:"setting_id" json:"setting_id"`
	Value     string    `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OverriddenOrgSetting is a per-org override of an org setting
type OverriddenOrgSetting struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrgID     uuid.UUID `db:"org_id" json:"org_id"`
	SettingID uuid.UUID `db:"setting_id" json:"setting_id"`
	Value     string    `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrgUserSetting is a member-scoped setting definition
type OrgUserSetting struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Slug       string    `db:"slug" json:"slug"`
	Type       string    `db:"type" json:"type"`
	Default    string    `db:"default_value" json:"default"`
	OwnerValue string    `db:"owner_value" json:"owner_value"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// OrgUserSettingDefault is a per-org default for a member-scoped setting
type OrgUserSettingDefault struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrgID     uuid.UUID `db:"org_id" json:"org_id"`
	SettingID uuid.UUID `db:"setting_id" json:"setting_id"`
	Value     string    `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrgUserOrgUserSetting is a per-member value for a member-scoped setting
type OrgUserOrgUserSetting struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrgUserID uuid.UUID `db:"org_user_id" json:"org_user_id"`
	SettingID uuid.UUID `db:"setting_id" json:"setting_id"`
	Value     string    `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Plan represents a subscription plan. At most one plan is the default.
type Plan struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	IsDefault bool      `db:"is_default" json:"is_default"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Org represents an organization (tenant)
type Org struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	OwnerUserID      uuid.UUID  `db:"owner_user_id" json:"owner_user_id"`
	PrimaryPlanID    uuid.UUID  `db:"primary_plan_id" json:"primary_plan_id"`
	DefaultPlanID    uuid.UUID  `db:"default_plan_id" json:"default_plan_id"`
	CurrentPeriodEnd *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectivePlanID returns the plan governing the org right now: the primary
// plan while the billing period has not ended, the default plan afterwards.
func (o *Org) EffectivePlanID(now time.Time) uuid.UUID {
	if o.CurrentPeriodEnd == nil || o.CurrentPeriodEnd.After(now) {
		return o.PrimaryPlanID
	}
	return o.DefaultPlanID
}

// OrgUser represents a user's membership in an org
type OrgUser struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrgID     uuid.UUID `db:"org_id" json:"org_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Event represents a generic inbound event record
type Event struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Type      string    `db:"type" json:"type"`
	Payload   JSONB     `db:"payload" json:"payload"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
