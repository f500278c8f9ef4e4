package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName,omitempty" validate:"max=100"`
}

// LoginRequest matches the backend's login body, which capitalizes Email.
type LoginRequest struct {
	Email    string `json:"Email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// LoginResult is what Login stores on the session.
type LoginResult struct {
	AccessToken string
	TokenType   string
	Message     string
}

// Register creates a backend account. It does not log the user in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if err := c.check(req); err != nil {
		return err
	}
	return c.do(ctx, nil, http.MethodPost, "/auth/register", nil, req, nil)
}

// Login authenticates and stores the token and user on s.
func (c *Client) Login(ctx context.Context, s *Session, req LoginRequest) (LoginResult, error) {
	if s == nil {
		return LoginResult{}, ErrNoSession
	}
	if err := c.check(req); err != nil {
		return LoginResult{}, err
	}

	var raw record
	if err := c.do(ctx, nil, http.MethodPost, "/auth/login", nil, req, &raw); err != nil {
		return LoginResult{}, err
	}

	res := LoginResult{
		AccessToken: raw.str("accessToken", "access_token", "token"),
		TokenType:   raw.str("tokenType", "token_type"),
		Message:     raw.str("message"),
	}
	if res.AccessToken == "" {
		return res, fmt.Errorf("login: %w: no access token in response", ErrUnauthorized)
	}

	s.SetToken(res.AccessToken)
	if v, ok := raw.raw("user"); ok {
		var u record
		if err := json.Unmarshal(v, &u); err == nil {
			s.SetUser(toUser(u))
		}
	}
	return res, nil
}

// Logout invalidates the backend session. s is cleared even when the call
// fails.
func (c *Client) Logout(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	defer s.Clear()
	if !s.Authenticated() {
		return nil
	}
	err := c.do(ctx, s, http.MethodPost, "/auth/logout", nil, nil, nil)
	if errors.Is(err, ErrUnauthorized) {
		return nil
	}
	return err
}

func (c *Client) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if err := c.check(req); err != nil {
		return err
	}
	return c.do(ctx, nil, http.MethodPost, "/auth/forgot-password", nil, req, nil)
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := c.check(req); err != nil {
		return err
	}
	return c.do(ctx, nil, http.MethodPost, "/auth/reset-password", nil, req, nil)
}

// RefreshToken asks the backend for a new access token and stores it on s.
func (c *Client) RefreshToken(ctx context.Context, s *Session) (string, error) {
	if s == nil {
		return "", ErrNoSession
	}
	var raw record
	if err := c.do(ctx, s, http.MethodPost, refreshPath, nil, nil, &raw); err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	token := raw.str("accessToken", "access_token", "token")
	if token == "" {
		return "", fmt.Errorf("refresh token: %w: empty token", ErrUnauthorized)
	}
	s.SetToken(token)
	return token, nil
}
