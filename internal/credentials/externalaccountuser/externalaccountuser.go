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

// Package externalaccountuser implements ExternalAccountAuthorizedUser:
// structurally a UserRefresh client, but pointed at the STS refresh-token
// grant instead of the plain OAuth2 token endpoint, with client
// credentials and the long-lived refresh token all sourced from the
// external_account_authorized_user credential file.
package externalaccountuser

import (
	"context"
	"net/http"
	"time"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"github.com/GoogleCloudPlatform/gcpauth/internal/refresh"
	"github.com/GoogleCloudPlatform/gcpauth/internal/sts"
	"golang.org/x/oauth2"
)

// Config is the parsed shape of an external_account_authorized_user
// credential file.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
	RevokeURL    string
	QuotaProject string

	HTTPClient *http.Client

	// EagerRefreshThreshold overrides refresh.DefaultEagerRefreshThreshold
	// when positive.
	EagerRefreshThreshold time.Duration
	// ForceRefreshOnFailure, when set, makes Token return the last
	// cached token on a failed refresh instead of propagating the error.
	ForceRefreshOnFailure bool
}

// Client is the ExternalAccountAuthorizedUserClient credential client.
type Client struct {
	cfg    Config
	engine *refresh.Engine
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = sts.DefaultTokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	c := &Client{cfg: cfg}
	c.engine = refresh.New(metrics.KindSTSExchange, c.fetch,
		refresh.WithEagerRefreshThreshold(cfg.EagerRefreshThreshold),
		refresh.WithForceRefreshOnFailure(cfg.ForceRefreshOnFailure))
	return c
}

func (c *Client) Token() (*oauth2.Token, error) {
	return c.engine.Token(context.Background())
}

func (c *Client) fetch(ctx context.Context) (*oauth2.Token, error) {
	req := &sts.TokenExchangeRequest{
		GrantType:          "refresh_token",
		RequestedTokenType: "urn:ietf:params:oauth:token-type:access_token",
		SubjectToken:       c.cfg.RefreshToken,
		SubjectTokenType:   "urn:ietf:params:oauth:token-type:refresh_token",
	}
	auth := sts.ClientAuthentication{
		AuthStyle:    oauth2.AuthStyleInHeader,
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
	}
	resp, err := sts.ExchangeToken(ctx, c.cfg.HTTPClient, c.cfg.TokenURL, req, auth, nil, nil)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Expiry:      time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

func (c *Client) ProjectID(ctx context.Context) (string, error) {
	return "", gcpautherr.New(gcpautherr.ProjectIDUndetectable, "externalaccountuser: no project id available")
}

func (c *Client) UniverseDomain(ctx context.Context) (string, error) {
	return "googleapis.com", nil
}

func (c *Client) QuotaProjectID() string { return c.cfg.QuotaProject }
