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

// Package externalaccount implements the ExternalAccount credential
// client: the workload/workforce identity federation pipeline that trades
// a subject token from an external identity provider for a Google access
// token via STS token exchange, with an optional service-account
// impersonation leg.
package externalaccount

import (
	"context"
	"net/http"
	"time"
)

// SubjectTokenSource is satisfied by each of the four ways a federation
// subject token can be sourced: file, URL, executable, or AWS.
type SubjectTokenSource interface {
	SubjectToken(ctx context.Context) (string, error)
}

// SubjectTokenFormat describes how to decode a file- or URL-sourced
// subject token payload.
type SubjectTokenFormat struct {
	// Type is "text" (the default) or "json".
	Type string
	// FieldName is required when Type is "json" — the key under which
	// the real token string is nested (e.g. "access_token" for Azure).
	FieldName string
}

// Config is the parsed, request-ready shape of an external_account
// credential file plus the request-time options a Facade layers on top.
type Config struct {
	Audience                       string
	SubjectTokenType               string
	TokenURL                       string
	TokenInfoURL                   string
	ServiceAccountImpersonationURL string
	ImpersonationLifetimeSeconds   int
	ClientID                       string
	ClientSecret                   string
	QuotaProject                   string
	WorkforcePoolUserProject       string
	Scopes                         []string

	Source SubjectTokenSource

	HTTPClient *http.Client

	// EagerRefreshThreshold overrides refresh.DefaultEagerRefreshThreshold
	// when positive.
	EagerRefreshThreshold time.Duration
	// ForceRefreshOnFailure, when set, makes Token return the last
	// cached token on a failed refresh instead of propagating the error.
	ForceRefreshOnFailure bool
}
