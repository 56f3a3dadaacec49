package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mailer-server/internal/observability"
	"mailer-server/internal/store"

	"github.com/google/uuid"
)

// ErrInvalidValue is returned when a stored value does not parse under its
// definition's type, or a typed accessor is called on the wrong type.
var ErrInvalidValue = errors.New("setting value invalid for its type")

// SettingStore defines the database operations required by Service
type SettingStore interface {
	EnsureGlobalSetting(ctx context.Context, slug, settingType, value string) (store.GlobalSetting, error)
	EnsureOrgSetting(ctx context.Context, slug, settingType, defaultValue string) (store.OrgSetting, error)
	GetOverriddenOrgSetting(ctx context.Context, orgID, settingID uuid.UUID) (store.OverriddenOrgSetting, error)
	EnsurePlanOrgSetting(ctx context.Context, planID, settingID uuid.UUID, value string) (store.PlanOrgSetting, error)
	EnsureOrgUserSetting(ctx context.Context, slug, settingType, defaultValue, ownerValue string) (store.OrgUserSetting, error)
	GetOrgUserOrgUserSetting(ctx context.Context, orgUserID, settingID uuid.UUID) (store.OrgUserOrgUserSetting, error)
	EnsureOrgUserSettingDefault(ctx context.Context, orgID, settingID uuid.UUID, value string) (store.OrgUserSettingDefault, error)
	GetOrgByID(ctx context.Context, orgID uuid.UUID) (store.Org, error)
	GetOrgUserByID(ctx context.Context, orgUserID uuid.UUID) (store.OrgUser, error)
}

// Service resolves typed setting values across the global, org, and member
// layers. Unknown slugs are materialized as bool/false on first read, so any
// slug is safe to read from anywhere.
type Service struct {
	store  SettingStore
	logger *observability.Logger
}

// New creates a new settings Service
func New(store SettingStore, logger *observability.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Value is the typed result of a setting read
type Value struct {
	Type string
	Bool bool
	Int  int
	Str  string
}

// AsBool returns the boolean value, failing when the setting is not a bool
func (v Value) AsBool() (bool, error) {
	if v.Type != store.SettingTypeBool {
		return false, fmt.Errorf("setting type is %q: %w", v.Type, ErrInvalidValue)
	}
	return v.Bool, nil
}

// AsInt returns the integer value, failing when the setting is not an int
func (v Value) AsInt() (int, error) {
	if v.Type != store.SettingTypeInt {
		return 0, fmt.Errorf("setting type is %q: %w", v.Type, ErrInvalidValue)
	}
	return v.Int, nil
}

// AsString returns the string value, failing when the setting is not a string
func (v Value) AsString() (string, error) {
	if v.Type != store.SettingTypeString {
		return "", fmt.Errorf("setting type is %q: %w", v.Type, ErrInvalidValue)
	}
	return v.Str, nil
}

func parseValue(settingType, raw string) (Value, error) {
	switch settingType {
	case store.SettingTypeBool:
		switch strings.ToLower(raw) {
		case "true":
			return Value{Type: settingType, Bool: true}, nil
		case "false":
			return Value{Type: settingType, Bool: false}, nil
		default:
			return Value{}, fmt.Errorf("value %q is not a bool: %w", raw, ErrInvalidValue)
		}
	case store.SettingTypeInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Value{}, fmt.Errorf("value %q is not an int: %w", raw, ErrInvalidValue)
		}
		return Value{Type: settingType, Int: n}, nil
	case store.SettingTypeString:
		return Value{Type: settingType, Str: raw}, nil
	default:
		return Value{}, fmt.Errorf("unknown setting type %q: %w", settingType, ErrInvalidValue)
	}
}

// GetGlobal resolves a process-wide setting by slug
func (s *Service) GetGlobal(ctx context.Context, slug string) (Value, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "setting_slug", Value: slug},
	)

	setting, err := s.store.EnsureGlobalSetting(ctx, slug, store.SettingTypeBool, "false")
	if err != nil {
		s.logger.Error(ctx, "failed to resolve global setting", err)
		return Value{}, err
	}
	return parseValue(setting.Type, setting.Value)
}

// GetGlobalBool resolves a global setting asserting it is a bool
func (s *Service) GetGlobalBool(ctx context.Context, slug string) (bool, error) {
	value, err := s.GetGlobal(ctx, slug)
	if err != nil {
		return false, err
	}
	return value.AsBool()
}

// GetGlobalInt resolves a global setting asserting it is an int
func (s *Service) GetGlobalInt(ctx context.Context, slug string) (int, error) {
	value, err := s.GetGlobal(ctx, slug)
	if err != nil {
		return 0, err
	}
	return value.AsInt()
}

// GetGlobalString resolves a global setting asserting it is a string
func (s *Service) GetGlobalString(ctx context.Context, slug string) (string, error) {
	value, err := s.GetGlobal(ctx, slug)
	if err != nil {
		return "", err
	}
	return value.AsString()
}

// GetOrg resolves an org-scoped setting. Resolution order: per-org override,
// then the value on the org's effective plan (materialized from the
// definition default on first read).
func (s *Service) GetOrg(ctx context.Context, orgID uuid.UUID, slug string) (Value, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "setting_slug", Value: slug},
		observability.Field{Key: "org_id", Value: orgID.String()},
	)

	setting, err := s.store.EnsureOrgSetting(ctx, slug, store.SettingTypeBool, "false")
	if err != nil {
		s.logger.Error(ctx, "failed to resolve org setting definition", err)
		return Value{}, err
	}

	override, err := s.store.GetOverriddenOrgSetting(ctx, orgID, setting.ID)
	if err == nil {
		return parseValue(setting.Type, override.Value)
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error(ctx, "failed to look up org setting override", err)
		return Value{}, err
	}

	org, err := s.store.GetOrgByID(ctx, orgID)
	if err != nil {
		s.logger.Error(ctx, "failed to get org", err)
		return Value{}, err
	}

	planValue, err := s.store.EnsurePlanOrgSetting(ctx, org.EffectivePlanID(time.Now()), setting.ID, setting.Default)
	if err != nil {
		s.logger.Error(ctx, "failed to resolve plan org setting", err)
		return Value{}, err
	}
	return parseValue(setting.Type, planValue.Value)
}

// GetOrgBool resolves an org setting asserting it is a bool
func (s *Service) GetOrgBool(ctx context.Context, orgID uuid.UUID, slug string) (bool, error) {
	value, err := s.GetOrg(ctx, orgID, slug)
	if err != nil {
		return false, err
	}
	return value.AsBool()
}

// GetOrgInt resolves an org setting asserting it is an int
func (s *Service) GetOrgInt(ctx context.Context, orgID uuid.UUID, slug string) (int, error) {
	value, err := s.GetOrg(ctx, orgID, slug)
	if err != nil {
		return 0, err
	}
	return value.AsInt()
}

// GetOrgString resolves an org setting asserting it is a string
func (s *Service) GetOrgString(ctx context.Context, orgID uuid.UUID, slug string) (string, error) {
	value, err := s.GetOrg(ctx, orgID, slug)
	if err != nil {
		return "", err
	}
	return value.AsString()
}

// GetOrgUser resolves a member-scoped setting. The org owner always gets the
// definition's owner value. Other members resolve per-member value, then the
// org's default for the setting (materialized from the definition default on
// first read).
func (s *Service) GetOrgUser(ctx context.Context, orgUserID uuid.UUID, slug string) (Value, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "setting_slug", Value: slug},
		observability.Field{Key: "org_user_id", Value: orgUserID.String()},
	)

	setting, err := s.store.EnsureOrgUserSetting(ctx, slug, store.SettingTypeBool, "false", "false")
	if err != nil {
		s.logger.Error(ctx, "failed to resolve org user setting definition", err)
		return Value{}, err
	}

	orgUser, err := s.store.GetOrgUserByID(ctx, orgUserID)
	if err != nil {
		s.logger.Error(ctx, "failed to get org user", err)
		return Value{}, err
	}
	org, err := s.store.GetOrgByID(ctx, orgUser.OrgID)
	if err != nil {
		s.logger.Error(ctx, "failed to get org", err)
		return Value{}, err
	}

	if org.OwnerUserID == orgUser.UserID {
		return parseValue(setting.Type, setting.OwnerValue)
	}

	memberValue, err := s.store.GetOrgUserOrgUserSetting(ctx, orgUserID, setting.ID)
	if err == nil {
		return parseValue(setting.Type, memberValue.Value)
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error(ctx, "failed to look up member setting value", err)
		return Value{}, err
	}

	orgDefault, err := s.store.EnsureOrgUserSettingDefault(ctx, org.ID, setting.ID, setting.Default)
	if err != nil {
		s.logger.Error(ctx, "failed to resolve org user setting default", err)
		return Value{}, err
	}
	return parseValue(setting.Type, orgDefault.Value)
}

// GetOrgUserBool resolves a member setting asserting it is a bool
func (s *Service) GetOrgUserBool(ctx context.Context, orgUserID uuid.UUID, slug string) (bool, error) {
	value, err := s.GetOrgUser(ctx, orgUserID, slug)
	if err != nil {
		return false, err
	}
	return value.AsBool()
}

// GetOrgUserInt resolves a member setting asserting it is an int
func (s *Service) GetOrgUserInt(ctx context.Context, orgUserID uuid.UUID, slug string) (int, error) {
	value, err := s.GetOrgUser(ctx, orgUserID, slug)
	if err != nil {
		return 0, err
	}
	return value.AsInt()
}

// GetOrgUserString resolves a member setting asserting it is a string
func (s *Service) GetOrgUserString(ctx context.Context, orgUserID uuid.UUID, slug string) (string, error) {
	value, err := s.GetOrgUser(ctx, orgUserID, slug)
	if err != nil {
		return "", err
	}
	return value.AsString()
}
