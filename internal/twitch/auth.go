package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// tokenEndpoint is Twitch's OAuth2 client-credentials endpoint, used to mint
// an app access token for IRC anonymous-read and Helix lookups.
const tokenEndpoint = "https://id.twitch.tv/oauth2/token"

// appAccessTokenResponse is the subset of Twitch's token response this
// package reads.
type appAccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// fetchAppAccessToken exchanges a client id/secret for an app access token
// via the client-credentials grant.
func fetchAppAccessToken(ctx context.Context, httpClient *http.Client, clientID, clientSecret string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("twitch auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("twitch auth: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("twitch auth: unexpected status %d", resp.StatusCode)
	}

	var body appAccessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("twitch auth: decode response: %w", err)
	}
	if body.AccessToken == "" {
		return Token{}, fmt.Errorf("twitch auth: empty access token in response")
	}

	return Token{
		Secret:    body.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - 10*time.Second),
	}, nil
}

// Token is an app access token and its expiry.
type Token struct {
	Secret    string
	ExpiresAt time.Time
}

// Expired reports whether the token has passed its expiry, or is within the
// grace period the Token Provider refreshes ahead of.
func (t Token) Expired(now time.Time, grace time.Duration) bool {
	return !now.Before(t.ExpiresAt.Add(-grace))
}
