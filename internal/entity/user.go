package entity

// UserLoginData is the identity extracted from a verified access token.
// The identity provider itself is external; this service only reads claims.
type UserLoginData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
