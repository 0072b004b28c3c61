package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// AuthClient handles Supabase Auth operations for the signed-in user.
type AuthClient struct {
	client *Client
}

// SignInWithPassword authenticates a user with email/password.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	req := map[string]string{
		"email":    email,
		"password": password,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := a.client.request(ctx, "POST", a.client.authURL+"/token?grant_type=password", body, nil)
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &session, nil
}

// RefreshToken refreshes an access token.
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	req := map[string]string{
		"refresh_token": refreshToken,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := a.client.request(ctx, "POST", a.client.authURL+"/token?grant_type=refresh_token", body, nil)
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &session, nil
}

// ExchangeCode completes the PKCE flow for a code delivered on the
// auth-callback deep link.
func (a *AuthClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Session, error) {
	req := map[string]string{
		"auth_code":     code,
		"code_verifier": codeVerifier,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := a.client.request(ctx, "POST", a.client.authURL+"/token?grant_type=pkce", body, nil)
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &session, nil
}

// GetUser retrieves the current user using an access token.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	respBody, statusCode, err := a.client.requestWithToken(ctx, "GET", a.client.authURL+"/user", nil, nil, accessToken)
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var user User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &user, nil
}

// SignOut signs out a user, revoking the refresh token server-side.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	_, statusCode, err := a.client.requestWithToken(ctx, "POST", a.client.authURL+"/logout", nil, nil, accessToken)
	if err != nil {
		return err
	}

	if statusCode >= 400 {
		return fmt.Errorf("sign out failed with status %d", statusCode)
	}

	return nil
}

// ParseCallback extracts auth credentials from an auth-callback URL: a PKCE
// `code` query parameter, or an implicit-flow access/refresh token pair in
// the hash fragment.
func ParseCallback(rawURL string) (*CallbackParams, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid callback URL: %w", err)
	}

	if code := u.Query().Get("code"); code != "" {
		return &CallbackParams{Code: code}, nil
	}

	if u.Fragment != "" {
		frag, err := url.ParseQuery(strings.TrimPrefix(u.Fragment, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid callback fragment: %w", err)
		}
		access := frag.Get("access_token")
		refresh := frag.Get("refresh_token")
		if access != "" && refresh != "" {
			return &CallbackParams{AccessToken: access, RefreshToken: refresh}, nil
		}
	}

	return nil, fmt.Errorf("callback URL carries no code or token pair")
}
