package cmd

import (
	"context"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"golang.org/x/crypto/bcrypt"
)

func TestSeedUsers(t *testing.T) {
	users := mock.NewMockUserStore()
	ctx := context.Background()

	created, err := seedUsers(ctx, users)
	if err != nil {
		t.Fatalf("seedUsers failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 accounts, got %v", created)
	}

	admin, err := users.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("admin missing: %v", err)
	}
	if !admin.HasRole(database.RoleAdmin) || !admin.HasRole(database.RoleUser) {
		t.Errorf("expected admin to hold both roles, got %v", admin.Roles)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")) != nil {
		t.Error("admin password does not match")
	}

	user, _ := users.GetByUsername(ctx, "user")
	if user.HasRole(database.RoleAdmin) {
		t.Error("user must not be an admin")
	}

	created, err = seedUsers(ctx, users)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("expected no new accounts on second run, got %v", created)
	}
}
