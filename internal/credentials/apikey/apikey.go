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

// Package apikey implements the trivial ApiKey credential client: it
// carries no bearer token at all, only an X-Goog-Api-Key header.
package apikey

import (
	"context"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"golang.org/x/oauth2"
)

// HeaderName is the header ApiKey clients set instead of Authorization.
const HeaderName = "X-Goog-Api-Key"

// Client is the ApiKey credential client. It never calls a token
// endpoint; Token always returns a zero-expiry placeholder token whose
// AccessToken field callers must not send as a bearer token — Facade
// special-cases ApiKey to emit the header instead.
type Client struct {
	key string
}

// New builds a Client for the given API key value.
func New(key string) *Client {
	return &Client{key: key}
}

// Key returns the configured API key.
func (c *Client) Key() string { return c.key }

// Token satisfies oauth2.TokenSource for uniformity with other variants,
// though ApiKey clients are never bearer-authorized.
func (c *Client) Token() (*oauth2.Token, error) {
	return &oauth2.Token{}, nil
}

func (c *Client) ProjectID(ctx context.Context) (string, error) {
	return "", gcpautherr.New(gcpautherr.ProjectIDUndetectable, "apikey: api key credentials carry no project id")
}

func (c *Client) UniverseDomain(ctx context.Context) (string, error) {
	return "googleapis.com", nil
}

func (c *Client) QuotaProjectID() string { return "" }
