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

package externalaccount

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GoogleCloudPlatform/gcpauth/internal/audience"
	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"github.com/GoogleCloudPlatform/gcpauth/internal/refresh"
	"github.com/GoogleCloudPlatform/gcpauth/internal/sts"
	"golang.org/x/oauth2"
	"google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Client is the ExternalAccount credential client: the federation
// pipeline described in SubjectTokenSource, plus an optional
// impersonation leg.
type Client struct {
	cfg    Config
	engine *refresh.Engine
}

// New builds a Client from cfg. cfg.Source must be set by the caller to
// whichever of FileSource/URLSource/ExecutableSource/AWSSource the
// credential file's credential_source selected.
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

// effectiveScopes returns the configured scopes for the outward-facing STS
// token, or nil when none were configured: the outward token itself carries
// no implicit cloud-platform scope, unlike the impersonation leg.
func (c *Client) effectiveScopes() []string {
	if len(c.cfg.Scopes) > 0 {
		return c.cfg.Scopes
	}
	return nil
}

func (c *Client) fetch(ctx context.Context) (*oauth2.Token, error) {
	subjectToken, err := c.cfg.Source.SubjectToken(ctx)
	if err != nil {
		return nil, err
	}

	scopes := c.effectiveScopes()
	if c.cfg.ServiceAccountImpersonationURL != "" {
		scopes = []string{cloudPlatformScope}
	}

	req := &sts.TokenExchangeRequest{
		Audience:           c.cfg.Audience,
		Scope:              scopes,
		RequestedTokenType: "urn:ietf:params:oauth:token-type:access_token",
		SubjectToken:       subjectToken,
		SubjectTokenType:   c.cfg.SubjectTokenType,
	}
	auth := sts.ClientAuthentication{
		AuthStyle:    oauth2.AuthStyleInHeader,
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
	}
	var opts map[string]any
	if c.cfg.WorkforcePoolUserProject != "" && c.cfg.ClientID == "" {
		opts = map[string]any{"userProject": c.cfg.WorkforcePoolUserProject}
	}

	resp, err := sts.ExchangeToken(ctx, c.cfg.HTTPClient, c.cfg.TokenURL, req, auth, nil, opts)
	if err != nil {
		return nil, err
	}

	stsToken := &oauth2.Token{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Expiry:      time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}

	if c.cfg.ServiceAccountImpersonationURL == "" {
		return stsToken, nil
	}
	return c.impersonate(ctx, stsToken)
}

func (c *Client) impersonate(ctx context.Context, sourceToken *oauth2.Token) (*oauth2.Token, error) {
	body := map[string]any{"scope": c.effectiveScopesOrDefault()}
	if c.cfg.ImpersonationLifetimeSeconds > 0 {
		body["lifetime"] = fmt.Sprintf("%ds", c.cfg.ImpersonationLifetimeSeconds)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to marshal impersonation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServiceAccountImpersonationURL, bytes.NewReader(payload))
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to build impersonation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sourceToken.AccessToken)

	done := metrics.StartRecorder(metrics.KindImpersonate)
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.Network, "externalaccount: impersonation request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to read impersonation response", err)
	}
	if resp.StatusCode != http.StatusOK {
		done(metrics.StatusError)
		return nil, gcpautherr.Newf(gcpautherr.TokenRefreshFailed, "externalaccount: impersonation endpoint returned %s: %s", resp.Status, string(respBody))
	}

	var ir struct {
		AccessToken string `json:"accessToken"`
		ExpireTime  string `json:"expireTime"`
	}
	if err := json.Unmarshal(respBody, &ir); err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.TokenRefreshFailed, "externalaccount: failed to decode impersonation response", err)
	}
	done(metrics.StatusOK)

	tok := &oauth2.Token{AccessToken: ir.AccessToken, TokenType: "Bearer"}
	if t, err := time.Parse(time.RFC3339, ir.ExpireTime); err == nil {
		tok.Expiry = t
	}
	return tok, nil
}

func (c *Client) effectiveScopesOrDefault() []string {
	if len(c.cfg.Scopes) > 0 {
		return c.cfg.Scopes
	}
	return []string{cloudPlatformScope}
}

// ProjectID derives the project id from the federation audience's
// embedded project number via Cloud Resource Manager.
func (c *Client) ProjectID(ctx context.Context) (string, error) {
	projectNumber, err := audience.ProjectNumber(c.cfg.Audience)
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.ProjectIDUndetectable, "externalaccount: audience carries no project number", err)
	}

	tok, err := c.Token()
	if err != nil {
		return "", err
	}

	// option.WithHTTPClient and option.WithTokenSource are mutually
	// exclusive in google.golang.org/api/option: supplying both silently
	// drops the token source and the call goes out unauthenticated. Wrap
	// the injected HTTP client's transport in an oauth2.Transport instead
	// and pass only the resulting client.
	base := http.DefaultTransport
	if c.cfg.HTTPClient != nil && c.cfg.HTTPClient.Transport != nil {
		base = c.cfg.HTTPClient.Transport
	}
	authedClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   base,
			Source: oauth2.StaticTokenSource(tok),
		},
	}
	svc, err := cloudresourcemanager.NewService(ctx, option.WithHTTPClient(authedClient))
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to build Cloud Resource Manager client", err)
	}

	proj, err := svc.Projects.Get(projectNumber).Context(ctx).Do()
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.ProjectIDUndetectable, "externalaccount: failed to resolve project id from project number", err)
	}
	return proj.ProjectId, nil
}

func (c *Client) UniverseDomain(ctx context.Context) (string, error) {
	return "googleapis.com", nil
}

func (c *Client) QuotaProjectID() string { return c.cfg.QuotaProject }
