// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth is the public entry point of the module: Auth resolves
// Application Default Credentials once, caches the result, and serves
// bearer-token headers, signed payloads, project id, and universe domain
// to callers for the lifetime of the process.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/compute/metadata"
	credentialsapi "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"github.com/GoogleCloudPlatform/gcpauth/infra"
	"github.com/GoogleCloudPlatform/gcpauth/internal/adc"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentialfile"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials/apikey"
	"github.com/GoogleCloudPlatform/gcpauth/internal/credentials/idtoken"
	"github.com/GoogleCloudPlatform/gcpauth/internal/envvar"
	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"github.com/GoogleCloudPlatform/gcpauth/internal/refresh"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/oauth"
	"k8s.io/klog/v2"
)

// ClientOptions mirrors the clientOptions bag a caller can pass through to
// the eventual credential client. APIKey, UniverseDomain,
// EagerRefreshThreshold and ForceRefreshOnFailure are consulted; Subject is
// stored but not forwarded to any credential client.
type ClientOptions struct {
	APIKey                string
	Subject               string
	UniverseDomain        string
	EagerRefreshThreshold time.Duration
	ForceRefreshOnFailure bool
}

// Options configures a new Auth facade.
type Options struct {
	// Credentials is inline credential JSON; mutually exclusive with APIKey.
	Credentials []byte
	// KeyFile is a path to a credential JSON file, consulted if Credentials
	// is empty.
	KeyFile string

	Scopes         []string
	ProjectID      string
	APIKey         string
	AuthClient     credentials.Client
	UniverseDomain string
	QuotaProject   string
	ClientOptions  ClientOptions

	MetadataClient *metadata.Client
	IAMClient      *credentialsapi.IamCredentialsClient
	HTTPClient     *http.Client
}

// Auth is the process-lifetime facade: it resolves a credential client at
// most once and serves every caller the same cached object.
type Auth struct {
	opts Options

	resolveOnce sync.Once
	resolveErr  error
	client      credentials.Client

	quotaMu      sync.Mutex
	quotaProject string

	projectMu       sync.Mutex
	projectResolved bool
	cachedProjectID string
}

// New validates opts and builds an Auth ready to resolve its credential
// client lazily on first use.
func New(opts Options) (*Auth, error) {
	if opts.APIKey != "" && len(opts.Credentials) > 0 {
		return nil, gcpautherr.New(gcpautherr.ConfigConflict, "auth: apiKey and credentials are mutually exclusive")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Transport: infra.NewDetailed(http.DefaultTransport)}
	}
	if opts.MetadataClient == nil {
		opts.MetadataClient = metadata.NewClient(opts.HTTPClient)
	}
	a := &Auth{opts: opts, quotaProject: opts.QuotaProject}
	return a, nil
}

// SetQuotaProject overrides the quota project at runtime; it takes
// precedence over GOOGLE_CLOUD_QUOTA_PROJECT and any file-declared value.
func (a *Auth) SetQuotaProject(project string) {
	a.quotaMu.Lock()
	a.quotaProject = project
	a.quotaMu.Unlock()
}

func (a *Auth) explicitQuotaProject() string {
	a.quotaMu.Lock()
	defer a.quotaMu.Unlock()
	return a.quotaProject
}

// GetClient returns the resolved credential client, resolving it on the
// first call. Concurrent callers observe the same object and trigger only
// one resolution.
func (a *Auth) GetClient(ctx context.Context) (credentials.Client, error) {
	a.resolveOnce.Do(func() {
		a.client, a.resolveErr = a.resolve(ctx)
		if a.resolveErr != nil {
			klog.ErrorS(a.resolveErr, "auth: failed to resolve credential client")
		}
	})
	return a.client, a.resolveErr
}

func (a *Auth) resolve(ctx context.Context) (credentials.Client, error) {
	if a.opts.AuthClient != nil {
		return a.opts.AuthClient, nil
	}

	apiKey := a.opts.APIKey
	if apiKey == "" {
		apiKey = a.opts.ClientOptions.APIKey
	}

	adcOpts := adc.Options{
		Scopes:                a.opts.Scopes,
		QuotaProject:          a.explicitQuotaProject(),
		APIKey:                apiKey,
		HTTPClient:            a.opts.HTTPClient,
		MetadataClient:        a.opts.MetadataClient,
		IAMClient:             a.opts.IAMClient,
		EagerRefreshThreshold: a.opts.ClientOptions.EagerRefreshThreshold,
		ForceRefreshOnFailure: a.opts.ClientOptions.ForceRefreshOnFailure,
	}

	if len(a.opts.Credentials) > 0 {
		f, err := credentialfile.Parse(a.opts.Credentials)
		if err != nil {
			return nil, err
		}
		return adc.Dispatch(f, adcOpts, false)
	}

	if a.opts.KeyFile != "" {
		f, err := parseKeyFile(a.opts.KeyFile)
		if err != nil {
			return nil, err
		}
		return adc.Dispatch(f, adcOpts, false)
	}

	return adc.Resolve(ctx, adcOpts)
}

func parseKeyFile(path string) (*credentialfile.File, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "auth: failed to read keyFile", err)
	}
	return credentialfile.Parse(raw)
}

// GetAccessToken returns a fresh bearer token string for the resolved
// client, refreshing through its engine as needed.
func (a *Auth) GetAccessToken(ctx context.Context) (string, error) {
	c, err := a.GetClient(ctx)
	if err != nil {
		return "", err
	}
	tok, err := c.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// GetRequestHeaders builds the header set a caller should attach to a
// request against url: an Authorization bearer header (or X-Goog-Api-Key
// for the ApiKey variant) plus x-goog-user-project when a quota project
// applies.
func (a *Auth) GetRequestHeaders(ctx context.Context, url string) (http.Header, error) {
	c, err := a.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	h := make(http.Header)

	if ak, ok := c.(*apikey.Client); ok {
		h.Set(apikey.HeaderName, ak.Key())
		return h, nil
	}

	tok, err := c.Token()
	if err != nil {
		return nil, err
	}
	h.Set("Authorization", "Bearer "+tok.AccessToken)

	qp := a.explicitQuotaProject()
	if qp == "" {
		qp = c.QuotaProjectID()
	}
	if qp != "" {
		h.Set("X-Goog-User-Project", qp)
	}
	return h, nil
}

// AuthorizeRequest merges this facade's auth headers into req, overwriting
// only the auth header names it sets and leaving every other header the
// caller already set untouched.
func (a *Auth) AuthorizeRequest(ctx context.Context, req *http.Request) error {
	headers, err := a.GetRequestHeaders(ctx, req.URL.String())
	if err != nil {
		return err
	}
	for k, vs := range headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return nil
}

// Request authorizes req and issues it against the configured HTTP
// capability.
func (a *Auth) Request(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := a.AuthorizeRequest(ctx, req); err != nil {
		return nil, err
	}
	return a.opts.HTTPClient.Do(req.WithContext(ctx))
}

// Sign signs data, preferring a local private key when the resolved
// client exposes one, falling back to the remote IAM Credentials signBlob
// endpoint otherwise.
func (a *Auth) Sign(ctx context.Context, data []byte) ([]byte, error) {
	c, err := a.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	if signer, ok := c.(credentials.Signer); ok {
		return signer.Sign(ctx, data)
	}

	email, emailErr := a.serviceAccountEmail(ctx, c)
	if emailErr != nil {
		return nil, gcpautherr.Wrap(gcpautherr.SignUnsupported, "auth: cannot sign: no local key and no service account email", emailErr)
	}
	if a.opts.IAMClient == nil {
		return nil, gcpautherr.New(gcpautherr.SignUnsupported, "auth: cannot sign: no IAM credentials client configured for remote signBlob")
	}

	done := metrics.StartRecorder(metrics.KindSignBlob)
	resp, err := a.opts.IAMClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
		Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", email),
		Payload: data,
	}, gax.WithGRPCOptions(grpc.PerRPCCredentials(oauth.TokenSource{TokenSource: c})))
	if err != nil {
		done(metrics.StatusError)
		return nil, gcpautherr.Wrap(gcpautherr.SignUnsupported, "auth: remote signBlob failed", err)
	}
	done(metrics.StatusOK)
	return resp.GetSignedBlob(), nil
}

func (a *Auth) serviceAccountEmail(ctx context.Context, c credentials.Client) (string, error) {
	if signer, ok := c.(interface{ SignerEmail() string }); ok {
		if email := signer.SignerEmail(); email != "" {
			return email, nil
		}
	}
	if a.opts.MetadataClient != nil {
		email, err := a.opts.MetadataClient.GetWithContext(ctx, "instance/service-accounts/default/email")
		if err == nil {
			return strings.TrimSpace(email), nil
		}
	}
	return "", gcpautherr.New(gcpautherr.SignUnsupported, "auth: no service account email available")
}

// GetProjectID resolves the effective project id, caching the result
// permanently on first success. Precedence: explicit Options.ProjectID,
// then GCLOUD_PROJECT/GOOGLE_CLOUD_PROJECT env vars, then the project_id
// embedded in an explicit credential source, then whatever the resolved
// credential client can derive, then `gcloud config config-helper`, then
// a direct compute metadata lookup.
func (a *Auth) GetProjectID(ctx context.Context) (string, error) {
	a.projectMu.Lock()
	if a.projectResolved {
		id := a.cachedProjectID
		a.projectMu.Unlock()
		return id, nil
	}
	a.projectMu.Unlock()

	id, err := a.resolveProjectID(ctx)
	if err != nil {
		return "", err
	}

	a.projectMu.Lock()
	a.cachedProjectID = id
	a.projectResolved = true
	a.projectMu.Unlock()
	return id, nil
}

func (a *Auth) resolveProjectID(ctx context.Context) (string, error) {
	if a.opts.ProjectID != "" {
		return a.opts.ProjectID, nil
	}
	if id := envvar.First(envvar.ProjectIDVars...); id != "" {
		return id, nil
	}
	if id := a.explicitCredentialFileProjectID(); id != "" {
		return id, nil
	}

	if c, err := a.GetClient(ctx); err == nil {
		if id, err := c.ProjectID(ctx); err == nil && id != "" {
			return id, nil
		}
	}

	if id, err := gcloudConfigHelperProjectID(ctx); err == nil && id != "" {
		return id, nil
	}

	if a.opts.MetadataClient != nil && a.opts.MetadataClient.OnGCE() {
		if id, err := a.opts.MetadataClient.ProjectIDWithContext(ctx); err == nil && id != "" {
			return id, nil
		}
	}

	return "", gcpautherr.New(gcpautherr.ProjectIDUndetectable, "auth: could not determine project id")
}

func (a *Auth) explicitCredentialFileProjectID() string {
	if len(a.opts.Credentials) > 0 {
		if f, err := credentialfile.Parse(a.opts.Credentials); err == nil {
			return f.ProjectID
		}
	}
	if a.opts.KeyFile != "" {
		if f, err := parseKeyFile(a.opts.KeyFile); err == nil {
			return f.ProjectID
		}
	}
	return ""
}

// gcloudConfigHelperProjectID shells out to the gcloud CLI as a last
// resort before the bare compute metadata probe; absent or unauthenticated
// gcloud installs simply fail this step and fall through.
func gcloudConfigHelperProjectID(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "gcloud", "config", "config-helper", "--format=json").Output()
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.ProjectIDUndetectable, "auth: gcloud config-helper fallback failed", err)
	}

	var parsed struct {
		Configuration struct {
			Properties struct {
				Core struct {
					Project string `json:"project"`
				} `json:"core"`
			} `json:"properties"`
		} `json:"configuration"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return "", gcpautherr.Wrap(gcpautherr.ProjectIDUndetectable, "auth: failed to parse gcloud config-helper output", err)
	}
	if parsed.Configuration.Properties.Core.Project == "" {
		return "", gcpautherr.New(gcpautherr.ProjectIDUndetectable, "auth: gcloud config-helper reported no project")
	}
	return parsed.Configuration.Properties.Core.Project, nil
}

// GetUniverseDomain resolves the universe domain a token should
// authenticate against. Precedence: explicit Options.UniverseDomain, then
// ClientOptions.UniverseDomain, then whatever the resolved credential
// client reports (file-declared, metadata-derived, or the default
// "googleapis.com").
func (a *Auth) GetUniverseDomain(ctx context.Context) (string, error) {
	if a.opts.UniverseDomain != "" {
		return a.opts.UniverseDomain, nil
	}
	if a.opts.ClientOptions.UniverseDomain != "" {
		return a.opts.ClientOptions.UniverseDomain, nil
	}
	c, err := a.GetClient(ctx)
	if err != nil {
		return "", err
	}
	return c.UniverseDomain(ctx)
}

// GetIDTokenClient returns an IdToken-wrapped credential client for the
// given audience, failing with ID_TOKEN_UNSUPPORTED if the resolved
// variant cannot mint id tokens (e.g. any federation source).
func (a *Auth) GetIDTokenClient(ctx context.Context, audience string) (credentials.Client, error) {
	c, err := a.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	minter, ok := c.(credentials.IDTokenMinter)
	if !ok {
		return nil, gcpautherr.New(gcpautherr.IDTokenUnsupported, "auth: credential variant cannot mint id tokens")
	}
	return idtoken.New(minter, audience,
		refresh.WithEagerRefreshThreshold(a.opts.ClientOptions.EagerRefreshThreshold),
		refresh.WithForceRefreshOnFailure(a.opts.ClientOptions.ForceRefreshOnFailure)), nil
}
