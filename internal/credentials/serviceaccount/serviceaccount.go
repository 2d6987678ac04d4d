// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serviceaccount implements the ServiceAccountJWT credential
// client: a JWT-bearer exchange against the OAuth2 token endpoint, built
// from a service account's private key.
package serviceaccount

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	gjwt "github.com/GoogleCloudPlatform/gcpauth/internal/jwt"
	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"github.com/GoogleCloudPlatform/gcpauth/internal/refresh"
	"github.com/GoogleCloudPlatform/gcpauth/internal/signer"
	"golang.org/x/oauth2"
)

const (
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	grantType       = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL    = time.Hour
)

// Config is the parsed shape of a service_account credential file plus
// the request-time options (scopes, subject delegation) a Facade layers
// on top of it.
type Config struct {
	ClientEmail  string
	PrivateKey   string
	PrivateKeyID string
	ProjectID    string
	QuotaProject string
	UniverseDom  string
	TokenURL     string

	Scopes []string
	// Subject, when set, delegates to this user and forces the
	// JWT-bearer exchange path even if UseJWTAccessWithScope is set.
	Subject string
	// UseJWTAccessWithScope bypasses the token endpoint entirely: the
	// self-signed JWT (carrying the scope list as its "scope" claim)
	// is used directly as the bearer token.
	UseJWTAccessWithScope bool

	// EagerRefreshThreshold overrides refresh.DefaultEagerRefreshThreshold
	// when positive.
	EagerRefreshThreshold time.Duration
	// ForceRefreshOnFailure, when set, makes Token return the last
	// cached token on a failed refresh instead of propagating the error.
	ForceRefreshOnFailure bool
}

// Client is the ServiceAccountJWT credential client.
type Client struct {
	cfg    Config
	key    *rsa.PrivateKey
	http   *http.Client
	engine *refresh.Engine
}

// New parses cfg.PrivateKey and builds a Client.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	key, err := signer.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "serviceaccount: invalid private key", err)
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	c := &Client{cfg: cfg, key: key, http: httpClient}
	c.engine = refresh.New(metrics.KindTokenEndpoint, c.fetch,
		refresh.WithEagerRefreshThreshold(cfg.EagerRefreshThreshold),
		refresh.WithForceRefreshOnFailure(cfg.ForceRefreshOnFailure))
	return c, nil
}

// Token implements oauth2.TokenSource.
func (c *Client) Token() (*oauth2.Token, error) {
	return c.engine.Token(context.Background())
}

func (c *Client) fetch(ctx context.Context) (*oauth2.Token, error) {
	if c.cfg.UseJWTAccessWithScope && c.cfg.Subject == "" {
		return c.selfSignedToken()
	}
	return c.exchangeToken(ctx)
}

func (c *Client) selfSignedToken() (*oauth2.Token, error) {
	now := time.Now()
	claims := gjwt.NewClaims(c.cfg.ClientEmail, assertionTTL, now)
	claims.Scope = strings.Join(c.cfg.Scopes, " ")
	tok, err := gjwt.Sign(c.key, claims)
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.TokenRefreshFailed, "serviceaccount: failed to self-sign JWT", err)
	}
	return &oauth2.Token{
		AccessToken: tok,
		TokenType:   "Bearer",
		Expiry:      now.Add(assertionTTL),
	}, nil
}

func (c *Client) exchangeToken(ctx context.Context) (*oauth2.Token, error) {
	now := time.Now()
	claims := gjwt.NewClaims(c.cfg.ClientEmail, assertionTTL, now)
	claims.Scope = strings.Join(c.cfg.Scopes, " ")
	claims.Audience = c.cfg.TokenURL
	if c.cfg.Subject != "" {
		claims.Subject = c.cfg.Subject
	}
	assertion, err := gjwt.Sign(c.key, claims)
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.TokenRefreshFailed, "serviceaccount: failed to sign assertion", err)
	}

	data := url.Values{}
	data.Set("grant_type", grantType)
	data.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.Network, "serviceaccount: failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	done := metrics.StartRecorder(metrics.KindTokenEndpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.Network, "serviceaccount: token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.Network, "serviceaccount: failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		done(metrics.StatusError)
		return nil, gcpautherr.Newf(gcpautherr.TokenRefreshFailed, "serviceaccount: token endpoint returned %s: %s", resp.Status, string(body))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.TokenRefreshFailed, "serviceaccount: failed to decode response", err)
	}
	done(metrics.StatusOK)
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		Expiry:      now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// IDToken mints an ID token for audience. ServiceAccountJWT self-signs a
// JWT carrying target_audience, matching spec behavior for this variant.
func (c *Client) IDToken(ctx context.Context, audience string) (*oauth2.Token, error) {
	now := time.Now()
	claims := gjwt.NewClaims(c.cfg.ClientEmail, assertionTTL, now)
	claims.TargetAudience = audience
	claims.Audience = c.cfg.TokenURL
	tok, err := gjwt.Sign(c.key, claims)
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.TokenRefreshFailed, "serviceaccount: failed to sign id-token assertion", err)
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer", Expiry: now.Add(assertionTTL)}, nil
}

// Sign signs data directly with the service account's private key.
func (c *Client) Sign(ctx context.Context, data []byte) ([]byte, error) {
	return signer.SignRS256(c.key, data)
}

func (c *Client) SignerEmail() string { return c.cfg.ClientEmail }

func (c *Client) ProjectID(ctx context.Context) (string, error) {
	if c.cfg.ProjectID == "" {
		return "", gcpautherr.New(gcpautherr.ProjectIDUndetectable, "serviceaccount: credential file has no project_id")
	}
	return c.cfg.ProjectID, nil
}

func (c *Client) UniverseDomain(ctx context.Context) (string, error) {
	if c.cfg.UniverseDom != "" {
		return c.cfg.UniverseDom, nil
	}
	return "googleapis.com", nil
}

func (c *Client) QuotaProjectID() string { return c.cfg.QuotaProject }
