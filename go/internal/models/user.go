package models

// Role is the authorization level granted by the auth service
type Role string

const (
	RoleParticipant   Role = "PARTICIPANTE"
	RoleModerator     Role = "MODERADOR"
	RoleAdministrator Role = "ADMINISTRADOR"
)

// User represents a user in the system
type User struct {
	ID          int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Username    string `json:"username" yaml:"username"`
	Email       string `json:"email" yaml:"email"`
	FirstName   string `json:"firstName,omitempty" yaml:"first_name,omitempty"`
	LastName    string `json:"lastName,omitempty" yaml:"last_name,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty" yaml:"phone_number,omitempty"`
	Role        Role   `json:"role" yaml:"role"`
}

// DisplayName prefers the full name, then username, then email
func (u User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	if u.Username != "" {
		return u.Username
	}
	if u.Email != "" {
		return u.Email
	}
	return "user"
}

// Session is the locally persisted authentication state
type Session struct {
	Token string `yaml:"token"`
	User  User   `yaml:"user"`
}

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /api/v1/auth/register
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// AuthResponse is returned by login and token refresh
type AuthResponse struct {
	Token    string `json:"token"`
	Type     string `json:"type"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Session converts the response into the persisted projection
func (r AuthResponse) Session() Session {
	return Session{
		Token: r.Token,
		User: User{
			Email:    r.Email,
			Username: r.Username,
			Role:     Role(r.Role),
		},
	}
}
