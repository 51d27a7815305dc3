// Package bootstrap creates the System root row and the default admin
// User on first run, per spec.md §4.4/§6: applied only when no system
// user exists yet. Grounded on the teacher's cmd/seed/main.go, which
// seeded sample data directly against a *pgxpool.Pool; here it goes
// through the Data Service like any other caller.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaydb/jobcore/internal/dataservice"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// EnsureSystemAndAdmin returns the System row, creating it if absent, then
// ensures a system User exists, creating one from username/password if no
// User has IsSystem set. It is idempotent and safe to call on every
// startup.
func EnsureSystemAndAdmin(ctx context.Context, ds *dataservice.DataService, username, password string, log *slog.Logger) (domain.System, error) {
	sys, err := ds.GetSystem(ctx)
	if err != nil {
		if !store.IsNotFound(err) {
			return domain.System{}, fmt.Errorf("get system: %w", err)
		}
		sys, err = ds.SaveSystem(ctx, domain.System{Name: "default"})
		if err != nil {
			return domain.System{}, fmt.Errorf("create system: %w", err)
		}
		log.Info("bootstrap created system", "system_id", sys.ID)
	}

	users, err := ds.ListUsers(ctx)
	if err != nil {
		return domain.System{}, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if u.IsSystem {
			return sys, nil
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.System{}, fmt.Errorf("hash admin password: %w", err)
	}

	admin := domain.User{
		SystemID:     sys.ID,
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      true,
		IsActive:     true,
		IsSystem:     true,
	}
	if _, err := ds.SaveUser(ctx, admin); err != nil {
		return domain.System{}, fmt.Errorf("create admin user: %w", err)
	}
	log.Info("bootstrap created admin user", "username", username)

	return sys, nil
}
