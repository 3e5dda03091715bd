package models

// Requests for auth endpoints of the dashboard server.

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type ConfirmEmailRequest struct {
	Token string `query:"token" json:"token" validate:"required"`
}

// Session is the dashboard's view of the current authentication state.
type Session struct {
	Authenticated  bool  `json:"authenticated"`
	EmailConfirmed bool  `json:"email_confirmed"`
	Loading        bool  `json:"loading"`
	User           *User `json:"user,omitempty"`
}
