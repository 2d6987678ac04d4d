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

// Package impersonate implements the Impersonated credential client: it
// wraps a source credential client and trades its token for a
// short-lived token on a target service account via the IAM Credentials
// API's generateAccessToken call, and signs through its signBlob call.
package impersonate

import (
	"context"
	"fmt"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	gcreds "github.com/GoogleCloudPlatform/gcpauth/internal/credentials"
	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"github.com/GoogleCloudPlatform/gcpauth/internal/refresh"
	"github.com/googleapis/gax-go/v2"
	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/oauth"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Config describes the impersonation target and request shape.
type Config struct {
	// TargetServiceAccount is the email of the service account to
	// impersonate.
	TargetServiceAccount string
	// Delegates is the chain of service accounts the caller has
	// delegate access through, in order, ending just before
	// TargetServiceAccount.
	Delegates []string
	// Lifetime is the requested validity of the minted token; zero
	// means the IAM Credentials API default (one hour).
	Lifetime time.Duration
	Scopes   []string

	QuotaProject string

	// EagerRefreshThreshold overrides refresh.DefaultEagerRefreshThreshold
	// when positive.
	EagerRefreshThreshold time.Duration
	// ForceRefreshOnFailure, when set, makes Token return the last
	// cached token on a failed refresh instead of propagating the error.
	ForceRefreshOnFailure bool
}

// Client is the Impersonated credential client.
type Client struct {
	cfg    Config
	source gcreds.Client
	iam    *credentials.IamCredentialsClient
	engine *refresh.Engine
}

// New builds a Client that impersonates cfg.TargetServiceAccount using
// source to authorize the underlying IAM Credentials API calls.
func New(cfg Config, source gcreds.Client, iam *credentials.IamCredentialsClient) *Client {
	c := &Client{cfg: cfg, source: source, iam: iam}
	c.engine = refresh.New(metrics.KindImpersonate, c.fetch,
		refresh.WithEagerRefreshThreshold(cfg.EagerRefreshThreshold),
		refresh.WithForceRefreshOnFailure(cfg.ForceRefreshOnFailure))
	return c
}

func (c *Client) name() string {
	return fmt.Sprintf("projects/-/serviceAccounts/%s", c.cfg.TargetServiceAccount)
}

func (c *Client) perRPCCreds() gax.CallOption {
	return gax.WithGRPCOptions(grpc.PerRPCCredentials(oauth.TokenSource{TokenSource: c.source}))
}

func (c *Client) fetch(ctx context.Context) (*oauth2.Token, error) {
	req := &credentialspb.GenerateAccessTokenRequest{
		Name:      c.name(),
		Delegates: c.cfg.Delegates,
		Scope:     c.cfg.Scopes,
	}
	if c.cfg.Lifetime > 0 {
		req.Lifetime = durationpb.New(c.cfg.Lifetime)
	}

	done := metrics.StartRecorder(metrics.KindImpersonate)
	resp, err := c.iam.GenerateAccessToken(ctx, req, c.perRPCCreds())
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.TokenRefreshFailed, "impersonate: generateAccessToken failed", err)
	}
	done(metrics.StatusOK)

	tok := &oauth2.Token{AccessToken: resp.GetAccessToken(), TokenType: "Bearer"}
	if et := resp.GetExpireTime(); et != nil {
		tok.Expiry = et.AsTime()
	}
	return tok, nil
}

func (c *Client) Token() (*oauth2.Token, error) {
	return c.engine.Token(context.Background())
}

// IDToken mints an id-token for audience via generateIdToken.
func (c *Client) IDToken(ctx context.Context, audience string) (*oauth2.Token, error) {
	req := &credentialspb.GenerateIdTokenRequest{
		Name:         c.name(),
		Delegates:    c.cfg.Delegates,
		Audience:     audience,
		IncludeEmail: true,
	}
	done := metrics.StartRecorder(metrics.KindImpersonate)
	resp, err := c.iam.GenerateIdToken(ctx, req, c.perRPCCreds())
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.TokenRefreshFailed, "impersonate: generateIdToken failed", err)
	}
	done(metrics.StatusOK)
	return &oauth2.Token{AccessToken: resp.GetToken(), TokenType: "Bearer"}, nil
}

// Sign signs data via the IAM Credentials signBlob RPC, authorized with
// the source credential's token.
func (c *Client) Sign(ctx context.Context, data []byte) ([]byte, error) {
	req := &credentialspb.SignBlobRequest{
		Name:      c.name(),
		Delegates: c.cfg.Delegates,
		Payload:   data,
	}
	done := metrics.StartRecorder(metrics.KindSignBlob)
	resp, err := c.iam.SignBlob(ctx, req, c.perRPCCreds())
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.SignUnsupported, "impersonate: signBlob failed", err)
	}
	done(metrics.StatusOK)
	return resp.GetSignedBlob(), nil
}

func (c *Client) SignerEmail() string { return c.cfg.TargetServiceAccount }

func (c *Client) ProjectID(ctx context.Context) (string, error) {
	return c.source.ProjectID(ctx)
}

func (c *Client) UniverseDomain(ctx context.Context) (string, error) {
	return c.source.UniverseDomain(ctx)
}

func (c *Client) QuotaProjectID() string {
	return gcreds.QuotaProjectPrecedence(c.cfg.QuotaProject, "", c.source.QuotaProjectID())
}
