package models

import "time"

// User is a stored account. Email is the primary key; PasswordHash holds
// the encoded hash only, never the plaintext.
type User struct {
	Email        string
	PasswordHash string
	Nickname     string
	Role         string
	Approved     bool
	CreatedAt    time.Time
}

// UserResponse is the public view of a User returned by registration.
type UserResponse struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (u *User) Public() *UserResponse {
	return &UserResponse{
		Email:    u.Email,
		Nickname: u.Nickname,
		Role:     u.Role,
		Approved: u.Approved,
	}
}
