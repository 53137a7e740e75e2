package auth

import "github.com/opsdesk/opsdesk/internal/models"

// Actor is the acting identity for a mutation. A zero Actor is the system:
// unauthenticated, no name, recorded as a null actor in history.
type Actor struct {
	UserID          string
	DisplayName     string
	IsAuthenticated bool
	IsStaff         bool
}

// System returns the unauthenticated system actor.
func System() Actor {
	return Actor{}
}

// ActorFromUser builds an authenticated actor from a user row.
func ActorFromUser(user *models.User) Actor {
	if user == nil {
		return Actor{}
	}
	return Actor{
		UserID:          user.ID,
		DisplayName:     user.DisplayName(),
		IsAuthenticated: true,
		IsStaff:         user.IsStaff,
	}
}
