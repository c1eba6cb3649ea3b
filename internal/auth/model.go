package auth

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// Account is the durable identity row. RefreshTokenHash is the SHA-256 of the
// single refresh token currently allowed for this account.
type Account struct {
	ID                    string
	Email                 string
	Name                  string
	Role                  Role
	PasswordHash          string
	IsActive              bool
	LastLoginAt           *time.Time
	RefreshTokenHash      *string
	RefreshTokenExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Profile is the only view of an account that leaves the server.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

func (a Account) Profile() Profile {
	return Profile{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
}

// Identity is the claim set carried by both token kinds.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

func (a Account) Identity() Identity {
	return Identity{UserID: a.ID, Email: a.Email, Role: a.Role}
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Session is what a successful login or refresh hands back to the handler.
type Session struct {
	User   Profile
	Tokens TokenPair
}
