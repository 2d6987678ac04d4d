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

// Package userrefresh implements the UserRefresh credential client: the
// OAuth2 refresh_token grant used by gcloud-issued authorized_user
// credentials.
package userrefresh

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"github.com/GoogleCloudPlatform/gcpauth/internal/refresh"
	"golang.org/x/oauth2"
)

const defaultTokenURL = "https://oauth2.googleapis.com/token"

// Config is the parsed shape of an authorized_user credential file.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	QuotaProject string
	ProjectID    string
	TokenURL     string

	// TargetAudience, when set, requests an id_token instead of (or
	// alongside) an access token.
	TargetAudience string

	// EagerRefreshThreshold overrides refresh.DefaultEagerRefreshThreshold
	// when positive.
	EagerRefreshThreshold time.Duration
	// ForceRefreshOnFailure, when set, makes Token return the last
	// cached token on a failed refresh instead of propagating the error.
	ForceRefreshOnFailure bool
}

// Client is the UserRefresh credential client.
type Client struct {
	cfg    Config
	http   *http.Client
	engine *refresh.Engine
}

// New builds a Client from cfg.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	c := &Client{cfg: cfg, http: httpClient}
	c.engine = refresh.New(metrics.KindTokenEndpoint, c.fetch,
		refresh.WithEagerRefreshThreshold(cfg.EagerRefreshThreshold),
		refresh.WithForceRefreshOnFailure(cfg.ForceRefreshOnFailure))
	return c
}

func (c *Client) Token() (*oauth2.Token, error) {
	return c.engine.Token(context.Background())
}

func (c *Client) fetch(ctx context.Context) (*oauth2.Token, error) {
	data := url.Values{}
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", c.cfg.RefreshToken)
	if c.cfg.TargetAudience != "" {
		data.Set("target_audience", c.cfg.TargetAudience)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.Network, "userrefresh: failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	done := metrics.StartRecorder(metrics.KindTokenEndpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.Network, "userrefresh: token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.Network, "userrefresh: failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		done(metrics.StatusError)
		return nil, gcpautherr.Newf(gcpautherr.TokenRefreshFailed, "userrefresh: token endpoint returned %s: %s", resp.Status, string(body))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.TokenRefreshFailed, "userrefresh: failed to decode response", err)
	}
	done(metrics.StatusOK)

	accessToken := tr.AccessToken
	if c.cfg.TargetAudience != "" && tr.IDToken != "" {
		accessToken = tr.IDToken
	}
	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   tr.TokenType,
		Expiry:      time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// IDToken requests an id_token for audience via the target_audience form
// parameter.
func (c *Client) IDToken(ctx context.Context, audience string) (*oauth2.Token, error) {
	withAudience := *c
	cfg := c.cfg
	cfg.TargetAudience = audience
	withAudience.cfg = cfg
	withAudience.engine = refresh.New(metrics.KindTokenEndpoint, withAudience.fetch,
		refresh.WithEagerRefreshThreshold(cfg.EagerRefreshThreshold),
		refresh.WithForceRefreshOnFailure(cfg.ForceRefreshOnFailure))
	return withAudience.engine.Token(ctx)
}

func (c *Client) ProjectID(ctx context.Context) (string, error) {
	if c.cfg.ProjectID == "" {
		return "", gcpautherr.New(gcpautherr.ProjectIDUndetectable, "userrefresh: no project id available")
	}
	return c.cfg.ProjectID, nil
}

// UniverseDomain for UserRefresh is always the default universe per spec.
func (c *Client) UniverseDomain(ctx context.Context) (string, error) {
	return "googleapis.com", nil
}

func (c *Client) QuotaProjectID() string { return c.cfg.QuotaProject }
