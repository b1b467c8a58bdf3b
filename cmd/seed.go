package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default roles and accounts",
	Long: `Create ROLE_ADMIN and ROLE_USER and the default accounts
admin/admin123 (both roles) and user/user123 (user role).
Existing accounts are left untouched.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedAccount struct {
	username string
	password string
	roles    []database.Role
}

var seedAccounts = []seedAccount{
	{"admin", "admin123", []database.Role{database.RoleAdmin, database.RoleUser}},
	{"user", "user123", []database.Role{database.RoleUser}},
}

// seedUsers ensures the roles and default accounts exist and returns the created usernames.
func seedUsers(ctx context.Context, users database.UserStore) ([]string, error) {
	if err := users.EnsureRoles(ctx, database.RoleAdmin, database.RoleUser); err != nil {
		return nil, fmt.Errorf("creating roles: %w", err)
	}

	var created []string
	for _, acc := range seedAccounts {
		exists, err := users.ExistsByUsername(ctx, acc.username)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(acc.password), bcrypt.DefaultCost)
		if err != nil {
			return created, fmt.Errorf("hashing password: %w", err)
		}
		u := &database.User{
			Name:         acc.username,
			Username:     acc.username,
			Email:        acc.username + "@example.com",
			PasswordHash: string(hash),
			Roles:        acc.roles,
		}
		if err := users.Create(ctx, u); err != nil {
			return created, fmt.Errorf("creating %s: %w", acc.username, err)
		}
		created = append(created, acc.username)
	}
	return created, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	created, err := seedUsers(ctx, b.users)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		fmt.Println("Default accounts already exist")
		return nil
	}
	for _, name := range created {
		fmt.Printf("Created user %s\n", name)
	}
	return nil
}
