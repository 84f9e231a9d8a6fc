// Package supabase wraps the hosted GoTrue auth service behind the narrow
// surface the auth state machine consumes.
package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

// extractProjectRef extracts just the project reference ID from a Supabase URL
// From: akrqbuajqkirdekonpzy.supabase.co
// To: akrqbuajqkirdekonpzy
func extractProjectRef(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	parts := strings.Split(url, ".")
	return parts[0]
}

// Client adapts the GoTrue SDK to the auth state machine's AuthAPI.
type Client struct {
	auth gotrue.Client
	// oauthRedirect is the fixed post-login target appended to the
	// Google authorize flow.
	oauthRedirect string
	logger        *slog.Logger
}

// NewClient initializes the Supabase authentication client and verifies
// the connection. An unreachable project is a startup error.
func NewClient(supabaseURL, supabaseKey, oauthRedirect string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	projectRef := extractProjectRef(supabaseURL)
	logger.Info("Initializing Supabase client", "project_ref", projectRef)

	client := gotrue.New(projectRef, supabaseKey)

	if _, err := client.GetSettings(); err != nil {
		return nil, fmt.Errorf("failed to connect to Supabase: %w", err)
	}
	logger.Info("Supabase connection successful")

	return &Client{auth: client, oauthRedirect: oauthRedirect, logger: logger}, nil
}

// SignInWithPassword validates the credentials and returns the new session.
func (c *Client) SignInWithPassword(_ context.Context, email, password string) (*models.Session, error) {
	res, err := c.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if res == nil || res.AccessToken == "" {
		return nil, fmt.Errorf("authentication failed: empty session")
	}

	return &models.Session{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User: &models.User{
			ID:       res.User.ID.String(),
			Email:    res.User.Email,
			FullName: metadataString(res.User.UserMetadata, "full_name"),
		},
	}, nil
}

// SignUp creates the auth account with the full name stored as user
// metadata. The profile row is inserted separately by the caller.
func (c *Client) SignUp(_ context.Context, email, password, fullName string) (*models.User, error) {
	res, err := c.auth.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
		Data: map[string]interface{}{
			"full_name": fullName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign-up failed: %w", err)
	}

	return &models.User{
		ID:       res.ID.String(),
		Email:    res.Email,
		FullName: fullName,
	}, nil
}

// SignOut revokes the session behind the access token. Sessions restored
// from a verified API token carry no upstream token; there is nothing to
// revoke for those.
func (c *Client) SignOut(_ context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := c.auth.WithToken(accessToken).Logout(); err != nil {
		return fmt.Errorf("sign-out failed: %w", err)
	}
	return nil
}

// ResetPassword requests a recovery email. The redirect back into the app
// is configured on the Supabase project (Site URL), not per request.
func (c *Client) ResetPassword(_ context.Context, email string) error {
	if err := c.auth.Recover(types.RecoverRequest{Email: email}); err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}
	return nil
}

// AuthorizeGoogle returns the URL that starts the Google OAuth flow with
// the fixed post-login redirect target.
func (c *Client) AuthorizeGoogle(_ context.Context) (string, error) {
	res, err := c.auth.Authorize(types.AuthorizeRequest{
		Provider:   types.ProviderGoogle,
		RedirectTo: c.oauthRedirect,
	})
	if err != nil {
		return "", fmt.Errorf("google authorization failed: %w", err)
	}
	return res.AuthorizationURL, nil
}

func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}
