// Package api is a typed client for the wanandroid REST API built on top of the shared cookie client.
// Login and register responses set session cookies, cookiestash saves them and sends them back
// with every following call, so authenticated endpoints work without any session handling here.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/cookiestash/lib/cookiestash"
)

// endpoint paths, relative to the base URL
const (
	loginPath    = "user/login"
	registerPath = "user/register"
	logoutPath   = "user/logout/json"
)

// Service calls the API through the cookie client.
type Service struct {
	client *cookiestash.Client
}

// User is the account returned by login and register.
type User struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	Nickname   string `json:"nickname"`
	PublicName string `json:"publicName"`
	Email      string `json:"email"`
	Token      string `json:"token"`
	Type       int    `json:"type"`
	Admin      bool   `json:"admin"`
	CoinCount  int    `json:"coinCount"`
}

// envelope wraps every API response.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode int             `json:"errorCode"`
	ErrorMsg  string          `json:"errorMsg"`
}

// New makes a service for the shared client.
func New(client *cookiestash.Client) *Service {
	return &Service{client: client}
}

// Login signs in. Session cookies from the response are saved by the client.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	form := url.Values{"username": {username}, "password": {password}}
	var user User
	if err := s.postForm(ctx, loginPath, form, &user); err != nil {
		return User{}, fmt.Errorf("login %s: %w", username, err)
	}
	log.Printf("[DEBUG] logged in as %s", user.Username)
	return user, nil
}

// Register creates an account. The server signs the new user in and sets session cookies.
func (s *Service) Register(ctx context.Context, username, password, repassword string) (User, error) {
	form := url.Values{"username": {username}, "password": {password}, "repassword": {repassword}}
	var user User
	if err := s.postForm(ctx, registerPath, form, &user); err != nil {
		return User{}, fmt.Errorf("register %s: %w", username, err)
	}
	log.Printf("[DEBUG] registered %s", user.Username)
	return user, nil
}

// Logout ends the server session. Saved cookies are kept, the next login replaces them.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.GetJSON(ctx, logoutPath, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// GetJSON calls the path with GET and decodes the response data into v. Nil v discards the data.
func (s *Service) GetJSON(ctx context.Context, path string, v any) error {
	req, err := s.client.NewRequest(ctx, http.MethodGet, path, http.NoBody)
	if err != nil {
		return err
	}
	return s.do(req, v)
}

func (s *Service) postForm(ctx context.Context, path string, form url.Values, v any) error {
	req, err := s.client.NewRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, v)
}

func (s *Service) do(req *http.Request, v any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &ResponseError{StatusCode: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.ErrorCode != 0 {
		return &APIError{Code: env.ErrorCode, Message: env.ErrorMsg}
	}
	if v == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
