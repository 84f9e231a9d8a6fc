package models

// User is the identity snapshot taken from the current session. It is
// immutable; a new session produces a new snapshot.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Session mirrors the token bundle issued by the auth service. It is owned
// by the auth service; this process only reads it.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user"`
}
