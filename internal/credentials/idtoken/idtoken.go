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

// Package idtoken implements the IdToken wrapper client: it holds a
// target audience and any credential client capable of minting ID
// tokens (ServiceAccountJWT, UserRefresh, ComputeMetadata, Impersonated),
// and presents the minted ID token as its own bearer token.
package idtoken

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"github.com/GoogleCloudPlatform/gcpauth/internal/refresh"
	"golang.org/x/oauth2"
)

// Minter is satisfied by any credential client capable of minting an ID
// token for an audience.
type Minter interface {
	IDToken(ctx context.Context, audience string) (*oauth2.Token, error)
}

// Client wraps a Minter, caching and refreshing the minted ID token the
// same way any other credential client caches its access token.
type Client struct {
	minter   Minter
	audience string
	engine   *refresh.Engine
}

// New builds an IdToken client targeting audience.
func New(minter Minter, audience string, opts ...refresh.Option) *Client {
	c := &Client{minter: minter, audience: audience}
	c.engine = refresh.New(metrics.KindTokenEndpoint, c.fetch, opts...)
	return c
}

func (c *Client) Token() (*oauth2.Token, error) {
	return c.engine.Token(context.Background())
}

func (c *Client) fetch(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.minter.IDToken(ctx, c.audience)
	if err != nil {
		return nil, err
	}
	if exp, ok := decodeExpiry(tok.AccessToken); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

// decodeExpiry extracts the "exp" claim of a JWT-shaped token without
// verifying its signature — the token was just minted by Google, so
// local verification would be redundant.
func decodeExpiry(jwt string) (time.Time, bool) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.Exp, 0), true
}

func (c *Client) ProjectID(ctx context.Context) (string, error) {
	return "", gcpautherr.New(gcpautherr.ProjectIDUndetectable, "idtoken: id-token clients carry no project id")
}

func (c *Client) UniverseDomain(ctx context.Context) (string, error) {
	return "googleapis.com", nil
}

func (c *Client) QuotaProjectID() string { return "" }
