package model

import "time"

// TokenType enumerates tokens.type.
type TokenType string

const (
	TokenRefresh        TokenType = "REFRESH_TOKEN"
	TokenForgotPassword TokenType = "FORGOT_PASSWORD_TOKEN"
	TokenVerifyAccount  TokenType = "VERIFY_ACCOUNT_TOKEN"
)

// Token models a row in the `tokens` table.  A user owns at most one row per
// type; for REFRESH_TOKEN that row is the user's session.
type Token struct {
	ID        string    // tokens.id
	Type      TokenType // tokens.type
	Value     string    // tokens.value, the signed token string
	UserID    string    // tokens.user_id
	CreatedAt time.Time // tokens.created_at
	UpdatedAt time.Time // tokens.updated_at
}
