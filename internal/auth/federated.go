package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FederatedProfile is the identity a federated provider vouches for.
type FederatedProfile struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Picture      *string `json:"picture"`
	SessionToken string  `json:"session_token"`
}

// FederatedProvider exchanges a one-time session id for a verified profile.
type FederatedProvider interface {
	FetchProfile(ctx context.Context, sessionID string) (*FederatedProfile, error)
}

// ErrFederatedDisabled is returned when no provider URL is configured.
var ErrFederatedDisabled = errors.New("federated login not configured")

// HTTPFederatedProvider calls the provider's session-data endpoint.
type HTTPFederatedProvider struct {
	url    string
	client *http.Client
}

// NewHTTPFederatedProvider builds a provider client.
func NewHTTPFederatedProvider(url string, timeout time.Duration) *HTTPFederatedProvider {
	return &HTTPFederatedProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// FetchProfile sends the session id in the X-Session-ID header.
func (p *HTTPFederatedProvider) FetchProfile(ctx context.Context, sessionID string) (*FederatedProfile, error) {
	if p.url == "" {
		return nil, ErrFederatedDisabled
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Session-ID", sessionID)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("federated provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("federated provider returned %d", resp.StatusCode)
	}

	var profile FederatedProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode federated profile: %w", err)
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	if profile.Email == "" {
		return nil, errors.New("federated profile has no email")
	}
	return &profile, nil
}
