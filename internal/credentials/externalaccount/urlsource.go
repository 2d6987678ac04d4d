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
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
)

// URLSource retrieves the subject token with a GET against a local
// server the external identity agent runs (e.g. a sidecar).
type URLSource struct {
	URL     string
	Headers map[string]string
	Format  SubjectTokenFormat
	Client  *http.Client
}

func (s URLSource) SubjectToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to build subject token request", err)
	}
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.Network, "externalaccount: subject token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to read subject token response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", gcpautherr.Newf(gcpautherr.Network, "externalaccount: subject token URL returned %s: %s", resp.Status, string(body))
	}

	if s.Format.Type == "json" {
		tok, err := extractSubjectTokenField(body, s.Format.FieldName)
		if err != nil {
			return "", gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "externalaccount: failed to extract subject token from URL response", err)
		}
		return tok, nil
	}
	return strings.TrimSpace(string(body)), nil
}
