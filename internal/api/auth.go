package api

import (
	"context"
	"fmt"

	"github.com/bookswap/bookswap/internal/model"
)

// LoginRequest is the payload of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session token and the signed-in user.
type LoginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login authenticates against the backend and returns a session token.
// The client does not retain the credentials; only the token is kept.
func Login(ctx context.Context, baseURL, email, password string) (LoginResponse, error) {
	c := NewClient(baseURL, "")

	var resp LoginResponse
	err := c.Post(ctx, "/login", LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("logging in: %w", err)
	}
	return resp, nil
}
