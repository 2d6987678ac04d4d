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

// Package jwt builds and signs the compact JWTs a ServiceAccountJWT client
// presents either as a JWT-bearer assertion to the token endpoint, or,
// when useJWTAccessWithScope is set, as a self-signed access token.
package jwt

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GoogleCloudPlatform/gcpauth/internal/signer"
)

const header = `{"alg":"RS256","typ":"JWT"}`

// Claims is the JWT claim set a service account assertion carries. A
// token-endpoint exchange sets Scope and Audience (the token URL), an
// id-token assertion sets TargetAudience and Audience, and a self-signed
// access token sets Scope only, as the token's authority.
type Claims struct {
	Issuer         string `json:"iss"`
	Scope          string `json:"scope,omitempty"`
	Audience       string `json:"aud,omitempty"`
	Subject        string `json:"sub,omitempty"`
	TargetAudience string `json:"target_audience,omitempty"`
	IssuedAt       int64  `json:"iat"`
	Expiry         int64  `json:"exp"`
}

// Sign builds the compact JWT (header.claims.signature, each segment
// base64url-encoded) for the given claims, signed with key.
func Sign(key *rsa.PrivateKey, claims Claims) (string, error) {
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jwt: failed to marshal claims: %w", err)
	}

	signingInput := signer.EncodeSegment([]byte(header)) + "." + signer.EncodeSegment(claimsJSON)
	sig, err := signer.SignRS256(key, []byte(signingInput))
	if err != nil {
		return "", err
	}
	return signingInput + "." + signer.EncodeSegment(sig), nil
}

// NewClaims fills in Issuer/IssuedAt/Expiry for a claim set valid for the
// given lifetime (Google's token endpoint rejects JWTs with a lifetime
// over one hour).
func NewClaims(issuer string, lifetime time.Duration, now time.Time) Claims {
	return Claims{
		Issuer:   issuer,
		IssuedAt: now.Unix(),
		Expiry:   now.Add(lifetime).Unix(),
	}
}
