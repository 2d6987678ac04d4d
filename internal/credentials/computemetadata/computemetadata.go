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

// Package computemetadata implements the ComputeMetadata credential
// client, wrapping cloud.google.com/go/compute/metadata, the same client
// auth/auth.go's MetadataClient field uses for its own service-account
// email and project-id lookups.
package computemetadata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/compute/metadata"
	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"github.com/GoogleCloudPlatform/gcpauth/internal/refresh"
	"golang.org/x/oauth2"
)

const defaultServiceAccount = "default"

// Client is the ComputeMetadata credential client.
type Client struct {
	metadataClient *metadata.Client
	serviceAccount string
	quotaProject   string
	engine         *refresh.Engine
}

// New builds a Client around an existing metadata.Client, so the engine
// and the underlying HTTP transport (including its short timeouts) are
// shared with whatever already probed the instance for GCE presence.
func New(metadataClient *metadata.Client, quotaProject string, opts ...refresh.Option) *Client {
	c := &Client{metadataClient: metadataClient, serviceAccount: defaultServiceAccount, quotaProject: quotaProject}
	c.engine = refresh.New(metrics.KindMetadataProbe, c.fetch, opts...)
	return c
}

func (c *Client) Token() (*oauth2.Token, error) {
	return c.engine.Token(context.Background())
}

func (c *Client) fetch(ctx context.Context) (*oauth2.Token, error) {
	done := metrics.StartRecorder(metrics.KindMetadataProbe)
	path := fmt.Sprintf("instance/service-accounts/%s/token", c.serviceAccount)
	body, err := c.metadataClient.GetWithContext(ctx, path)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.MetadataUnavailable, "computemetadata: failed to fetch token", err)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal([]byte(body), &tr); err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.MetadataUnavailable, "computemetadata: failed to decode token response", err)
	}
	done(metrics.StatusOK)
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		Expiry:      time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// IDToken fetches an identity token scoped to audience from the metadata
// server's identity endpoint.
func (c *Client) IDToken(ctx context.Context, audience string) (*oauth2.Token, error) {
	done := metrics.StartRecorder(metrics.KindMetadataProbe)
	path := fmt.Sprintf("instance/service-accounts/%s/identity?audience=%s&format=full", c.serviceAccount, audience)
	body, err := c.metadataClient.GetWithContext(ctx, path)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.MetadataUnavailable, "computemetadata: failed to fetch id-token", err)
	}
	done(metrics.StatusOK)
	return &oauth2.Token{AccessToken: body, TokenType: "Bearer"}, nil
}

func (c *Client) ProjectID(ctx context.Context) (string, error) {
	id, err := c.metadataClient.ProjectIDWithContext(ctx)
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.ProjectIDUndetectable, "computemetadata: failed to fetch project id", err)
	}
	return id, nil
}

// UniverseDomain queries the metadata server's universe/universe-domain
// endpoint, falling back to the default universe on any error from that
// endpoint (older metadata servers predate it).
func (c *Client) UniverseDomain(ctx context.Context) (string, error) {
	dom, err := c.metadataClient.GetWithContext(ctx, "universe/universe-domain")
	if err != nil {
		return "googleapis.com", nil
	}
	return dom, nil
}

func (c *Client) QuotaProjectID() string { return c.quotaProject }
