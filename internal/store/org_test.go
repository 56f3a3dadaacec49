package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func createTestPlan(t *testing.T, tdb *TestDB, name string, isDefault bool) uuid.UUID {
	t.Helper()
	planID := uuid.New()
	tdb.ExecSQL(t, `INSERT INTO plans (id, name, is_default) VALUES ($1, $2, $3)`,
		planID, name, isDefault)
	return planID
}

func TestStore_GetPlanByID(t *testing.T) {
	testDB := SetupTestDB(t)
	ctx := context.Background()

	t.Run("returns a stored plan", func(t *testing.T) {
		testDB.Truncate(t)
		planID := createTestPlan(t, testDB, "pro", false)

		plan, err := testDB.Store.GetPlanByID(ctx, planID)
		if err != nil {
			t.Fatalf("GetPlanByID() error = %v", err)
		}
		if plan.Name != "pro" {
			t.Errorf("Name = %v, want pro", plan.Name)
		}
		if plan.IsDefault {
			t.Error("IsDefault = true, want false")
		}
	})

	t.Run("an unknown plan is not found", func(t *testing.T) {
		testDB.Truncate(t)

		_, err := testDB.Store.GetPlanByID(ctx, uuid.New())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetPlanByID() error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_GetDefaultPlan(t *testing.T) {
	testDB := SetupTestDB(t)
	ctx := context.Background()

	t.Run("returns the flagged default among others", func(t *testing.T) {
		testDB.Truncate(t)
		createTestPlan(t, testDB, "pro", false)
		defaultID := createTestPlan(t, testDB, "free", true)

		plan, err := testDB.Store.GetDefaultPlan(ctx)
		if err != nil {
			t.Fatalf("GetDefaultPlan() error = %v", err)
		}
		if plan.ID != defaultID {
			t.Errorf("ID = %v, want %v", plan.ID, defaultID)
		}
	})

	t.Run("no default plan is not found", func(t *testing.T) {
		testDB.Truncate(t)
		createTestPlan(t, testDB, "pro", false)

		_, err := testDB.Store.GetDefaultPlan(ctx)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetDefaultPlan() error = %v, want ErrNotFound", err)
		}
	})
}
