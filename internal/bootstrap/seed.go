package bootstrap

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type seedUser struct {
	Email string
	Name  string
	Role  domain.Role
	Pass  string
}

var devSeeds = []seedUser{
	{Email: "admin@example.com", Name: "Admin", Role: domain.RoleAdmin, Pass: "AdminPassword123!"},
	{Email: "mentor@example.com", Name: "Mentor", Role: domain.RoleMentor, Pass: "MentorPassword123!"},
	{Email: "student@example.com", Name: "Student", Role: domain.RoleStudent, Pass: "StudentPassword123!"},
}

// Seed creates the dev accounts through the replicated service so they reach
// the replica too. Existing accounts are left alone (restart safe). It returns
// how many accounts were created.
func (a *App) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, s := range devSeeds {
		_, err := a.Accounts.Create(ctx, accounts.NewUser{
			Email:        s.Email,
			FullName:     s.Name,
			Password:     s.Pass,
			Role:         s.Role,
			AuthProvider: domain.ProviderLocal,
		})
		if domain.Is(err, domain.CodeEmailAlreadyExists) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	a.Log.Info().Int("created", created).Msg("seeded dev accounts")
	return created, nil
}
