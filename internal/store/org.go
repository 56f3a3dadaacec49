package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const sqlGetOrgByID = `
SELECT id, name, owner_user_id, primary_plan_id, default_plan_id, current_period_end, created_at, updated_at
FROM orgs
WHERE id = $1
`

// GetOrgByID retrieves an org by ID
func (s *Store) GetOrgByID(ctx context.Context, orgID uuid.UUID) (Org, error) {
	var org Org
	err := s.db.GetContext(ctx, &org, sqlGetOrgByID, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Org{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get org", err)
		return Org{}, fmt.Errorf("failed to get org: %w", err)
	}
	return org, nil
}

const sqlGetOrgUserByID = `
SELECT id, org_id, user_id, created_at, updated_at
FROM org_users
WHERE id = $1
`

// GetOrgUserByID retrieves an org membership by ID
func (s *Store) GetOrgUserByID(ctx context.Context, orgUserID uuid.UUID) (OrgUser, error) {
	var orgUser OrgUser
	err := s.db.GetContext(ctx, &orgUser, sqlGetOrgUserByID, orgUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OrgUser{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get org user", err)
		return OrgUser{}, fmt.Errorf("failed to get org user: %w", err)
	}
	return orgUser, nil
}

const sqlGetPlanByID = `
SELECT id, name, is_default, created_at, updated_at
FROM plans
WHERE id = $1
`

// GetPlanByID retrieves a plan by ID
func (s *Store) GetPlanByID(ctx context.Context, planID uuid.UUID) (Plan, error) {
	var plan Plan
	err := s.db.GetContext(ctx, &plan, sqlGetPlanByID, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Plan{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get plan", err)
		return Plan{}, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

const sqlGetDefaultPlan = `
SELECT id, name, is_default, created_at, updated_at
FROM plans
WHERE is_default
`

// GetDefaultPlan retrieves the unique default plan
func (s *Store) GetDefaultPlan(ctx context.Context) (Plan, error) {
	var plan Plan
	err := s.db.GetContext(ctx, &plan, sqlGetDefaultPlan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Plan{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get default plan", err)
		return Plan{}, fmt.Errorf("failed to get default plan: %w", err)
	}
	return plan, nil
}
