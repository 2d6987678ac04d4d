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

// Package credentials defines the common contract every credential
// client variant (ServiceAccountJWT, UserRefresh, ComputeMetadata,
// ExternalAccount, ExternalAccountAuthorizedUser, Impersonated, IdToken,
// ApiKey) satisfies, so the ADC resolver and the Facade can treat them
// uniformly regardless of which variant was actually selected.
package credentials

import (
	"context"

	"golang.org/x/oauth2"
)

// Client is the minimum behavior every credential variant provides: an
// oauth2.TokenSource plus the identifying metadata the Facade surfaces
// (ProjectID, UniverseDomain, QuotaProjectID).
type Client interface {
	oauth2.TokenSource

	// ProjectID returns the GCP project id associated with this
	// credential, or an error of kind gcpautherr.ProjectIDUndetectable
	// if this variant cannot determine one.
	ProjectID(ctx context.Context) (string, error)

	// UniverseDomain returns the domain the credential authenticates
	// against, defaulting to "googleapis.com" when unspecified.
	UniverseDomain(ctx context.Context) (string, error)

	// QuotaProjectID returns the project to bill/quota requests
	// against, or "" if none was configured.
	QuotaProjectID() string
}

// Signer is implemented by credential clients that hold (or can reach) a
// private key capable of signing arbitrary bytes, used by Facade.Sign.
type Signer interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
	SignerEmail() string
}

// IDTokenMinter is implemented by credential clients that can mint an
// OIDC ID token for a target audience, used by Facade.GetIDTokenClient.
type IDTokenMinter interface {
	IDToken(ctx context.Context, audience string) (*oauth2.Token, error)
}

// QuotaProjectPrecedence resolves the quota project to use, given the
// explicit caller-supplied value, a value discovered via the
// GOOGLE_CLOUD_QUOTA_PROJECT environment variable, and the
// quota_project_id value embedded in a credential file. The innermost,
// most explicit source wins: explicit setter, then environment, then
// file.
func QuotaProjectPrecedence(explicit, env, file string) string {
	if explicit != "" {
		return explicit
	}
	if env != "" {
		return env
	}
	return file
}
