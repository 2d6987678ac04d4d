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

// Package credentialfile parses the on-disk JSON credential file formats
// into their typed, variant-specific representations and dispatches on the
// "type" discriminator field the way the ADC resolver requires.
package credentialfile

import (
	"encoding/json"
	"fmt"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
)

// Type is the "type" discriminator field of a credential JSON file.
type Type string

const (
	TypeServiceAccount               Type = "service_account"
	TypeAuthorizedUser                Type = "authorized_user"
	TypeExternalAccount               Type = "external_account"
	TypeExternalAccountAuthorizedUser Type = "external_account_authorized_user"
	TypeImpersonatedServiceAccount    Type = "impersonated_service_account"
)

// File is the parsed representation of any supported credential JSON file.
// Only the fields relevant to the variant named by Type are populated.
type File struct {
	Type Type `json:"type"`

	// service_account
	ClientEmail    string `json:"client_email"`
	PrivateKey     string `json:"private_key"`
	PrivateKeyID   string `json:"private_key_id"`
	ProjectID      string `json:"project_id"`
	UniverseDomain string `json:"universe_domain"`
	QuotaProjectID string `json:"quota_project_id"`
	TokenURL       string `json:"token_uri"`

	// authorized_user
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`

	// external_account / external_account_authorized_user
	Audience                       string            `json:"audience"`
	SubjectTokenType               string            `json:"subject_token_type"`
	ServiceAccountImpersonationURL string            `json:"service_account_impersonation_url"`
	TokenInfoURL                   string            `json:"token_info_url"`
	CredentialSource               *CredentialSource `json:"credential_source"`
	WorkforcePoolUserProject       string            `json:"workforce_pool_user_project"`
	ServiceAccountImpersonation    *SAImpersonation  `json:"service_account_impersonation"`

	// external_account_authorized_user
	RevokeURL string `json:"revoke_url"`

	// impersonated_service_account
	SourceCredentials json.RawMessage `json:"source_credentials"`
	Delegates         []string        `json:"delegates"`
}

// SAImpersonation holds the "service_account_impersonation" sub-object of
// an external_account file.
type SAImpersonation struct {
	TokenLifetimeSeconds int `json:"token_lifetime_seconds"`
}

// CredentialSource mirrors the "credential_source" object of an
// external_account file; exactly one of File/URL/Executable/EnvironmentID
// is expected to be set.
type CredentialSource struct {
	File                        string            `json:"file"`
	URL                         string            `json:"url"`
	Headers                     map[string]string `json:"headers"`
	Executable                  *Executable       `json:"executable"`
	EnvironmentID               string            `json:"environment_id"`
	RegionURL                   string            `json:"region_url"`
	RegionalCredVerificationURL string            `json:"regional_cred_verification_url"`
	IMDSv2SessionTokenURL       string            `json:"imdsv2_session_token_url"`
	Format                      SubjectTokenFormat `json:"format"`
}

// SubjectTokenFormat describes how to pull the subject token string out of
// a file- or URL-sourced credential payload.
type SubjectTokenFormat struct {
	Type                  string `json:"type"`
	SubjectTokenFieldName string `json:"subject_token_field_name"`
}

// Executable describes an executable-sourced credential.
type Executable struct {
	Command       string `json:"command"`
	TimeoutMillis *int   `json:"timeout_millis"`
	OutputFile    string `json:"output_file"`
}

// Parse unmarshals raw credential JSON and validates that the required
// fields for its declared Type are present.
func Parse(raw []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "invalid JSON", err)
	}
	if f.TokenURL == "" {
		// external_account and external_account_authorized_user files name
		// their token endpoint "token_url" rather than "token_uri".
		var alt struct {
			TokenURL string `json:"token_url"`
		}
		if err := json.Unmarshal(raw, &alt); err == nil {
			f.TokenURL = alt.TokenURL
		}
	}
	if err := validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func validate(f *File) error {
	switch f.Type {
	case TypeServiceAccount:
		if f.ClientEmail == "" {
			return gcpautherr.New(gcpautherr.CredentialFileInvalid, "service_account file missing client_email")
		}
		if f.PrivateKey == "" {
			return gcpautherr.New(gcpautherr.CredentialFileInvalid, "service_account file missing private_key")
		}
	case TypeAuthorizedUser:
		if f.ClientID == "" || f.ClientSecret == "" || f.RefreshToken == "" {
			return gcpautherr.New(gcpautherr.CredentialFileInvalid, "authorized_user file missing client_id, client_secret, or refresh_token")
		}
	case TypeExternalAccount:
		if f.Audience == "" {
			return gcpautherr.New(gcpautherr.CredentialFileInvalid, "external_account file missing audience")
		}
		if f.CredentialSource == nil {
			return gcpautherr.New(gcpautherr.CredentialFileInvalid, "external_account file missing credential_source")
		}
	case TypeExternalAccountAuthorizedUser:
		if f.RefreshToken == "" || f.TokenURL == "" {
			return gcpautherr.New(gcpautherr.CredentialFileInvalid, "external_account_authorized_user file missing refresh_token or token_uri")
		}
	case TypeImpersonatedServiceAccount:
		if len(f.SourceCredentials) == 0 {
			return gcpautherr.New(gcpautherr.CredentialFileInvalid, "impersonated_service_account file missing source_credentials")
		}
		if f.ServiceAccountImpersonationURL == "" {
			return gcpautherr.New(gcpautherr.CredentialFileInvalid, "impersonated_service_account file missing service_account_impersonation_url")
		}
	default:
		return gcpautherr.New(gcpautherr.UnrecognizedCredential, fmt.Sprintf("unrecognized credential type %q", f.Type))
	}
	return nil
}
