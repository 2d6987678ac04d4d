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

// Package adc implements Application Default Credentials discovery: the
// ordered strategy list that finds a credential without any explicit
// configuration, and the file-variant dispatch table that turns a parsed
// credential file into the matching internal/credentials client.
package adc

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	credentialsapi "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/compute/metadata"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentialfile"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials/apikey"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials/computemetadata"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials/externalaccount"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials/externalaccountuser"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials/impersonate"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials/serviceaccount"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials/userrefresh"
	"github.com/GoogleCloudPlatform/gcpauth/internal/envvar"
	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"github.com/GoogleCloudPlatform/gcpauth/internal/refresh"
)

// Options carries the request-time configuration the resolver needs:
// the scopes any minted token should carry, and the shared HTTP/metadata
// capabilities credential clients issue their calls through.
type Options struct {
	Scopes         []string
	QuotaProject   string
	APIKey         string
	AuthClient     credentials.Client
	HTTPClient     *http.Client
	MetadataClient *metadata.Client
	IAMClient      *credentialsapi.IamCredentialsClient

	// EagerRefreshThreshold and ForceRefreshOnFailure are forwarded to
	// the refresh.Engine of whichever credential client gets built.
	EagerRefreshThreshold time.Duration
	ForceRefreshOnFailure bool
}

// refreshOpts builds the refresh.Option slice shared by every variant's
// engine, carrying the eager-refresh window and force-refresh-on-failure
// behavior through from Options.
func (o Options) refreshOpts() []refresh.Option {
	return []refresh.Option{
		refresh.WithEagerRefreshThreshold(o.EagerRefreshThreshold),
		refresh.WithForceRefreshOnFailure(o.ForceRefreshOnFailure),
	}
}

// Resolve runs the ADC strategy list in order and returns the first
// credential client it finds.
func Resolve(ctx context.Context, opts Options) (credentials.Client, error) {
	if opts.AuthClient != nil {
		return opts.AuthClient, nil
	}
	if opts.APIKey != "" {
		return apikey.New(opts.APIKey), nil
	}

	if path := strings.TrimSpace(envvar.First(envvar.ApplicationCredentials...)); path != "" {
		return loadFile(path, opts)
	}

	if path, ok := wellKnownFilePath(); ok {
		if _, err := os.Stat(path); err == nil {
			return loadFile(path, opts)
		}
	}

	skipGCE, err := envvar.NoGCECheck.Bool()
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "adc: invalid NO_GCE_CHECK value", err)
	}
	if !skipGCE && opts.MetadataClient != nil && opts.MetadataClient.OnGCE() {
		return computemetadata.New(opts.MetadataClient, opts.QuotaProject, opts.refreshOpts()...), nil
	}

	return nil, gcpautherr.New(gcpautherr.ADCNotFound, "adc: could not find Application Default Credentials; see https://cloud.google.com/docs/authentication/external/set-up-adc")
}

func wellKnownFilePath() (string, bool) {
	if runtime.GOOS == "windows" {
		root, present := envvar.AppData.Lookup()
		if !present || root == "" {
			return "", false
		}
		return filepath.Join(root, "gcloud", "application_default_credentials.json"), true
	}
	root, present := envvar.HomeDir.Lookup()
	if !present || root == "" {
		return "", false
	}
	return filepath.Join(root, ".config", "gcloud", "application_default_credentials.json"), true
}

func loadFile(path string, opts Options) (credentials.Client, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "adc: failed to read credential file", err)
	}
	f, err := credentialfile.Parse(raw)
	if err != nil {
		return nil, err
	}
	return Dispatch(f, opts, false)
}

// Dispatch builds the credential client matching f.Type. nested is true
// when building a source_credentials file nested inside an
// impersonated_service_account file — nested impersonation is rejected.
func Dispatch(f *credentialfile.File, opts Options, nested bool) (credentials.Client, error) {
	quotaEnv, _ := envvar.QuotaProject.Lookup()
	quota := credentials.QuotaProjectPrecedence(opts.QuotaProject, quotaEnv, f.QuotaProjectID)

	switch f.Type {
	case credentialfile.TypeServiceAccount:
		return serviceaccount.New(serviceaccount.Config{
			ClientEmail:           f.ClientEmail,
			PrivateKey:            f.PrivateKey,
			PrivateKeyID:          f.PrivateKeyID,
			ProjectID:             f.ProjectID,
			QuotaProject:          quota,
			UniverseDom:           f.UniverseDomain,
			Scopes:                opts.Scopes,
			EagerRefreshThreshold: opts.EagerRefreshThreshold,
			ForceRefreshOnFailure: opts.ForceRefreshOnFailure,
		}, opts.HTTPClient)

	case credentialfile.TypeAuthorizedUser:
		return userrefresh.New(userrefresh.Config{
			ClientID:              f.ClientID,
			ClientSecret:          f.ClientSecret,
			RefreshToken:          f.RefreshToken,
			QuotaProject:          quota,
			EagerRefreshThreshold: opts.EagerRefreshThreshold,
			ForceRefreshOnFailure: opts.ForceRefreshOnFailure,
		}, opts.HTTPClient), nil

	case credentialfile.TypeExternalAccount:
		source, err := buildSubjectTokenSource(f, opts.HTTPClient)
		if err != nil {
			return nil, err
		}
		return externalaccount.New(externalaccount.Config{
			Audience:                       f.Audience,
			SubjectTokenType:               f.SubjectTokenType,
			TokenURL:                       f.TokenURL,
			ServiceAccountImpersonationURL: f.ServiceAccountImpersonationURL,
			ClientID:                       f.ClientID,
			ClientSecret:                   f.ClientSecret,
			QuotaProject:                   quota,
			WorkforcePoolUserProject:       f.WorkforcePoolUserProject,
			Scopes:                         opts.Scopes,
			Source:                         source,
			HTTPClient:                     opts.HTTPClient,
			EagerRefreshThreshold:          opts.EagerRefreshThreshold,
			ForceRefreshOnFailure:          opts.ForceRefreshOnFailure,
		}), nil

	case credentialfile.TypeExternalAccountAuthorizedUser:
		return externalaccountuser.New(externalaccountuser.Config{
			ClientID:              f.ClientID,
			ClientSecret:          f.ClientSecret,
			RefreshToken:          f.RefreshToken,
			TokenURL:              f.TokenURL,
			RevokeURL:             f.RevokeURL,
			QuotaProject:          quota,
			HTTPClient:            opts.HTTPClient,
			EagerRefreshThreshold: opts.EagerRefreshThreshold,
			ForceRefreshOnFailure: opts.ForceRefreshOnFailure,
		}), nil

	case credentialfile.TypeImpersonatedServiceAccount:
		if nested {
			return nil, gcpautherr.New(gcpautherr.CredentialFileInvalid, "adc: nested impersonated_service_account is not allowed")
		}
		if f.SourceCredentials == nil {
			return nil, gcpautherr.New(gcpautherr.CredentialFileInvalid, "adc: impersonated_service_account missing source_credentials")
		}
		sourceFile, err := credentialfile.Parse(f.SourceCredentials)
		if err != nil {
			return nil, err
		}
		source, err := Dispatch(sourceFile, opts, true)
		if err != nil {
			return nil, err
		}
		target, err := impersonationTargetEmail(f.ServiceAccountImpersonationURL)
		if err != nil {
			return nil, err
		}
		cfg := impersonate.Config{
			TargetServiceAccount:  target,
			Delegates:             f.Delegates,
			Scopes:                opts.Scopes,
			QuotaProject:          quota,
			EagerRefreshThreshold: opts.EagerRefreshThreshold,
			ForceRefreshOnFailure: opts.ForceRefreshOnFailure,
		}
		if f.ServiceAccountImpersonation != nil {
			cfg.Lifetime = time.Duration(f.ServiceAccountImpersonation.TokenLifetimeSeconds) * time.Second
		}
		return impersonate.New(cfg, source, opts.IAMClient), nil
	}

	return nil, gcpautherr.Newf(gcpautherr.UnrecognizedCredential, "adc: unrecognized credential type %q", f.Type)
}

// impersonationTargetEmail extracts the target service account email from
// a service_account_impersonation_url, which has no dedicated field of
// its own in the credential file: the URL is shaped like
// ".../v1/projects/-/serviceAccounts/<email>:generateAccessToken".
func impersonationTargetEmail(impersonationURL string) (string, error) {
	const marker = "serviceAccounts/"
	i := strings.Index(impersonationURL, marker)
	if i < 0 {
		return "", gcpautherr.Newf(gcpautherr.CredentialFileInvalid, "adc: service_account_impersonation_url %q does not name a target service account", impersonationURL)
	}
	rest := impersonationURL[i+len(marker):]
	rest = strings.TrimSuffix(rest, ":generateAccessToken")
	if j := strings.IndexByte(rest, ':'); j >= 0 {
		rest = rest[:j]
	}
	if rest == "" {
		return "", gcpautherr.Newf(gcpautherr.CredentialFileInvalid, "adc: service_account_impersonation_url %q does not name a target service account", impersonationURL)
	}
	return rest, nil
}

// buildSubjectTokenSource constructs the SubjectTokenSource matching the
// credential_source object of an external_account file: exactly one of
// File, URL, Executable, or an AWS EnvironmentID is expected to be set.
func buildSubjectTokenSource(f *credentialfile.File, httpClient *http.Client) (externalaccount.SubjectTokenSource, error) {
	cs := f.CredentialSource
	format := externalaccount.SubjectTokenFormat{
		Type:      cs.Format.Type,
		FieldName: cs.Format.SubjectTokenFieldName,
	}

	switch {
	case cs.File != "":
		return externalaccount.FileSource{Path: cs.File, Format: format}, nil

	case cs.URL != "":
		return externalaccount.URLSource{
			URL:     cs.URL,
			Headers: cs.Headers,
			Format:  format,
			Client:  httpClient,
		}, nil

	case cs.Executable != nil:
		var timeout time.Duration
		if cs.Executable.TimeoutMillis != nil {
			timeout = time.Duration(*cs.Executable.TimeoutMillis) * time.Millisecond
		}
		return externalaccount.ExecutableSource{
			Command:    cs.Executable.Command,
			Timeout:    timeout,
			OutputFile: cs.Executable.OutputFile,
		}, nil

	case strings.HasPrefix(strings.ToLower(cs.EnvironmentID), "aws"):
		return &externalaccount.AWSSource{
			RegionalCredVerificationURL: cs.RegionalCredVerificationURL,
			TargetResource:              f.Audience,
		}, nil
	}

	return nil, gcpautherr.New(gcpautherr.CredentialFileInvalid, "adc: external_account credential_source names no supported subject token source")
}
