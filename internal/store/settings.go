package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Settings rows are created lazily on first read. Every ensure method is an
// insert-or-select: INSERT ... ON CONFLICT DO NOTHING, then re-read, so
// concurrent readers racing to materialize the same row both end up with the
// row that won.

const sqlGetGlobalSettingBySlug = `
SELECT id, slug, type, value, created_at, updated_at
FROM global_settings
WHERE slug = $1
`

// GetGlobalSettingBySlug retrieves a global setting by slug
func (s *Store) GetGlobalSettingBySlug(ctx context.Context, slug string) (GlobalSetting, error) {
	var setting GlobalSetting
	err := s.db.GetContext(ctx, &setting, sqlGetGlobalSettingBySlug, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GlobalSetting{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get global setting", err)
		return GlobalSetting{}, fmt.Errorf("failed to get global setting: %w", err)
	}
	return setting, nil
}

const sqlInsertGlobalSetting = `
INSERT INTO global_settings (slug, type, value)
VALUES ($1, $2, $3)
ON CONFLICT (slug) DO NOTHING
`

// EnsureGlobalSetting materializes a global setting with the given type and
// value if no definition exists yet, and returns the current row either way.
func (s *Store) EnsureGlobalSetting(ctx context.Context, slug, settingType, value string) (GlobalSetting, error) {
	_, err := s.db.ExecContext(ctx, sqlInsertGlobalSetting, slug, settingType, value)
	if err != nil {
		s.logger.Error(ctx, "failed to ensure global setting", err)
		return GlobalSetting{}, fmt.Errorf("failed to ensure global setting: %w", err)
	}
	return s.GetGlobalSettingBySlug(ctx, slug)
}

const sqlGetOrgSettingBySlug = `
SELECT id, slug, type, default_value, created_at, updated_at
FROM org_settings
WHERE slug = $1
`

// GetOrgSettingBySlug retrieves an org setting definition by slug
func (s *Store) GetOrgSettingBySlug(ctx context.Context, slug string) (OrgSetting, error) {
	var setting OrgSetting
	err := s.db.GetContext(ctx, &setting, sqlGetOrgSettingBySlug, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OrgSetting{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get org setting", err)
		return OrgSetting{}, fmt.Errorf("failed to get org setting: %w", err)
	}
	return setting, nil
}

const sqlInsertOrgSetting = `
INSERT INTO org_settings (slug, type, default_value)
VALUES ($1, $2, $3)
ON CONFLICT (slug) DO NOTHING
`

// EnsureOrgSetting materializes an org setting definition if absent
func (s *Store) EnsureOrgSetting(ctx context.Context, slug, settingType, defaultValue string) (OrgSetting, error) {
	_, err := s.db.ExecContext(ctx, sqlInsertOrgSetting, slug, settingType, defaultValue)
	if err != nil {
		s.logger.Error(ctx, "failed to ensure org setting", err)
		return OrgSetting{}, fmt.Errorf("failed to ensure org setting: %w", err)
	}
	return s.GetOrgSettingBySlug(ctx, slug)
}

const sqlGetPlanOrgSetting = `
SELECT id, plan_id, setting_id, value, created_at, updated_at
FROM plan_org_settings
WHERE plan_id = $1 AND setting_id = $2
`

// GetPlanOrgSetting retrieves the org setting value attached to a plan
func (s *Store) GetPlanOrgSetting(ctx context.Context, planID, settingID uuid.UUID) (PlanOrgSetting, error) {
	var value PlanOrgSetting
	err := s.db.GetContext(ctx, &value, sqlGetPlanOrgSetting, planID, settingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlanOrgSetting{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get plan org setting", err)
		return PlanOrgSetting{}, fmt.Errorf("failed to get plan org setting: %w", err)
	}
	return value, nil
}

const sqlInsertPlanOrgSetting = `
INSERT INTO plan_org_settings (plan_id, setting_id, value)
VALUES ($1, $2, $3)
ON CONFLICT (plan_id, setting_id) DO NOTHING
`

// EnsurePlanOrgSetting materializes a plan value row if absent
func (s *Store) EnsurePlanOrgSetting(ctx context.Context, planID, settingID uuid.UUID, value string) (PlanOrgSetting, error) {
	_, err := s.db.ExecContext(ctx, sqlInsertPlanOrgSetting, planID, settingID, value)
	if err != nil {
		s.logger.Error(ctx, "failed to ensure plan org setting", err)
		return PlanOrgSetting{}, fmt.Errorf("failed to ensure plan org setting: %w", err)
	}
	return s.GetPlanOrgSetting(ctx, planID, settingID)
}

const sqlGetOverriddenOrgSetting = `
SELECT id, org_id, setting_id, value, created_at, updated_at
FROM overridden_org_settings
WHERE org_id = $1 AND setting_id = $2
`

// GetOverriddenOrgSetting retrieves a per-org override of an org setting
func (s *Store) GetOverriddenOrgSetting(ctx context.Context, orgID, settingID uuid.UUID) (OverriddenOrgSetting, error) {
	var value OverriddenOrgSetting
	err := s.db.GetContext(ctx, &value, sqlGetOverriddenOrgSetting, orgID, settingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OverriddenOrgSetting{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get overridden org setting", err)
		return OverriddenOrgSetting{}, fmt.Errorf("failed to get overridden org setting: %w", err)
	}
	return value, nil
}

const sqlGetOrgUserSettingBySlug = `
SELECT id, slug, type, default_value, owner_value, created_at, updated_at
FROM org_user_settings
WHERE slug = $1
`

// GetOrgUserSettingBySlug retrieves a member setting definition by slug
func (s *Store) GetOrgUserSettingBySlug(ctx context.Context, slug string) (OrgUserSetting, error) {
	var setting OrgUserSetting
	err := s.db.GetContext(ctx, &setting, sqlGetOrgUserSettingBySlug, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OrgUserSetting{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get org user setting", err)
		return OrgUserSetting{}, fmt.Errorf("failed to get org user setting: %w", err)
	}
	return setting, nil
}

const sqlInsertOrgUserSetting = `
INSERT INTO org_user_settings (slug, type, default_value, owner_value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO NOTHING
`

// EnsureOrgUserSetting materializes a member setting definition if absent
func (s *Store) EnsureOrgUserSetting(ctx context.Context, slug, settingType, defaultValue, ownerValue string) (OrgUserSetting, error) {
	_, err := s.db.ExecContext(ctx, sqlInsertOrgUserSetting, slug, settingType, defaultValue, ownerValue)
	if err != nil {
		s.logger.Error(ctx, "failed to ensure org user setting", err)
		return OrgUserSetting{}, fmt.Errorf("failed to ensure org user setting: %w", err)
	}
	return s.GetOrgUserSettingBySlug(ctx, slug)
}

const sqlGetOrgUserSettingDefault = `
SELECT id, org_id, setting_id, value, created_at, updated_at
FROM org_user_setting_defaults
WHERE org_id = $1 AND setting_id = $2
`

// GetOrgUserSettingDefault retrieves a per-org default for a member setting
func (s *Store) GetOrgUserSettingDefault(ctx context.Context, orgID, settingID uuid.UUID) (OrgUserSettingDefault, error) {
	var value OrgUserSettingDefault
	err := s.db.GetContext(ctx, &value, sqlGetOrgUserSettingDefault, orgID, settingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OrgUserSettingDefault{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get org user setting default", err)
		return OrgUserSettingDefault{}, fmt.Errorf("failed to get org user setting default: %w", err)
	}
	return value, nil
}

const sqlInsertOrgUserSettingDefault = `
INSERT INTO org_user_setting_defaults (org_id, setting_id, value)
VALUES ($1, $2, $3)
ON CONFLICT (org_id, setting_id) DO NOTHING
`

// EnsureOrgUserSettingDefault materializes a per-org default row if absent
func (s *Store) EnsureOrgUserSettingDefault(ctx context.Context, orgID, settingID uuid.UUID, value string) (OrgUserSettingDefault, error) {
	_, err := s.db.ExecContext(ctx, sqlInsertOrgUserSettingDefault, orgID, settingID, value)
	if err != nil {
		s.logger.Error(ctx, "failed to ensure org user setting default", err)
		return OrgUserSettingDefault{}, fmt.Errorf("failed to ensure org user setting default: %w", err)
	}
	return s.GetOrgUserSettingDefault(ctx, orgID, settingID)
}

const sqlGetOrgUserOrgUserSetting = `
SELECT id, org_user_id, setting_id, value, created_at, updated_at
FROM org_user_org_user_settings
WHERE org_user_id = $1 AND setting_id = $2
`

// GetOrgUserOrgUserSetting retrieves a per-member value for a member setting
func (s *Store) GetOrgUserOrgUserSetting(ctx context.Context, orgUserID, settingID uuid.UUID) (OrgUserOrgUserSetting, error) {
	var value OrgUserOrgUserSetting
	err := s.db.GetContext(ctx, &value, sqlGetOrgUserOrgUserSetting, orgUserID, settingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OrgUserOrgUserSetting{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get org user org user setting", err)
		return OrgUserOrgUserSetting{}, fmt.Errorf("failed to get org user org user setting: %w", err)
	}
	return value, nil
}
