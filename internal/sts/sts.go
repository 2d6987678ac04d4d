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

// Package sts implements the RFC 8693 OAuth 2.0 token exchange call that
// every ExternalAccount and ExternalAccountAuthorizedUser client uses to
// trade a subject token (or a refresh token) for a Google access token.
package sts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"golang.org/x/oauth2"
)

// DefaultTokenURL is the STS endpoint used when a credential
// configuration does not override token_url.
const DefaultTokenURL = "https://sts.googleapis.com/v1/token"

const grantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"

// TokenExchangeRequest is the RFC 8693 request body, form-encoded to the
// STS endpoint.
type TokenExchangeRequest struct {
	GrantType          string
	Audience           string
	Scope              []string
	RequestedTokenType string
	SubjectToken       string
	SubjectTokenType   string
	ActingParty        string
}

// ClientAuthentication is the (optional) confidential-client
// authentication a workforce pool audience requires.
type ClientAuthentication struct {
	AuthStyle    oauth2.AuthStyle
	ClientID     string
	ClientSecret string
}

// ExchangeResponse is the RFC 8693 token exchange response.
type ExchangeResponse struct {
	AccessToken     string `json:"access_token"`
	IssuedTokenType string `json:"issued_token_type"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int64  `json:"expires_in"`
	Scope           string `json:"scope"`
	RefreshToken    string `json:"refresh_token"`
}

// ExchangeToken performs the token exchange against tokenURL. extraOpts,
// when non-nil, is JSON-encoded into the request body's "options" field
// (used to carry workforce_pool_user_project).
func ExchangeToken(ctx context.Context, client *http.Client, tokenURL string, req *TokenExchangeRequest, auth ClientAuthentication, headers http.Header, extraOpts map[string]any) (*ExchangeResponse, error) {
	data := url.Values{}
	data.Set("grant_type", req.GrantType)
	if req.GrantType == "" {
		data.Set("grant_type", grantTypeTokenExchange)
	}
	data.Set("audience", req.Audience)
	data.Set("requested_token_type", req.RequestedTokenType)
	data.Set("subject_token", req.SubjectToken)
	data.Set("subject_token_type", req.SubjectTokenType)
	if len(req.Scope) > 0 {
		data.Set("scope", strings.Join(req.Scope, " "))
	}
	if req.ActingParty != "" {
		data.Set("actor_token", req.ActingParty)
	}
	if len(extraOpts) > 0 {
		b, err := json.Marshal(extraOpts)
		if err != nil {
			return nil, gcpautherr.Wrap(gcpautherr.Network, "sts: failed to marshal options", err)
		}
		data.Set("options", string(b))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.Network, "sts: failed to build request", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if auth.ClientID != "" {
		if auth.AuthStyle == oauth2.AuthStyleInParams {
			data.Set("client_id", auth.ClientID)
			data.Set("client_secret", auth.ClientSecret)
			httpReq.Body = io.NopCloser(strings.NewReader(data.Encode()))
		} else {
			httpReq.SetBasicAuth(url.QueryEscape(auth.ClientID), url.QueryEscape(auth.ClientSecret))
		}
	}

	done := metrics.StartRecorder(metrics.KindSTSExchange)
	resp, err := client.Do(httpReq)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.Network, "sts: token exchange request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.Network, "sts: failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		done(metrics.StatusError)
		return nil, gcpautherr.Newf(gcpautherr.TokenRefreshFailed, "sts: token exchange failed with status %s: %s", resp.Status, string(body))
	}

	var exResp ExchangeResponse
	if err := json.Unmarshal(body, &exResp); err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.TokenRefreshFailed, "sts: failed to decode response", err)
	}
	if exResp.ExpiresIn < 0 {
		done(metrics.StatusError)
		return nil, gcpautherr.New(gcpautherr.TokenRefreshFailed, "sts: got invalid expiry from security token service")
	}
	done(metrics.StatusOK)
	return &exResp, nil
}
