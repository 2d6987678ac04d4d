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
	"os"
	"os/exec"
	"time"

	"github.com/GoogleCloudPlatform/gcpauth/internal/envvar"
	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
)

// ExecutableSource runs a local command that prints a subject token (and
// its metadata) as JSON on stdout. Gated behind an explicit opt-in env
// var since running an arbitrary configured executable is a meaningful
// trust boundary.
type ExecutableSource struct {
	Command    string
	Timeout    time.Duration
	OutputFile string
}

// executableResponse is the JSON envelope the configured command must
// print to stdout (or write to OutputFile).
type executableResponse struct {
	Version        int    `json:"version"`
	Success        bool   `json:"success"`
	TokenType      string `json:"token_type"`
	ExpirationTime int64  `json:"expiration_time"`
	SubjectToken   string `json:"id_token"`
	SAMLResponse   string `json:"saml_response"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}

func (r executableResponse) token() string {
	if r.SubjectToken != "" {
		return r.SubjectToken
	}
	return r.SAMLResponse
}

func (s ExecutableSource) SubjectToken(ctx context.Context) (string, error) {
	allowed, err := envvar.AllowExecutables.Bool()
	if err != nil || !allowed {
		return "", gcpautherr.New(gcpautherr.CredentialFileInvalid, "externalaccount: executable-sourced credentials require GOOGLE_EXTERNAL_ACCOUNT_ALLOW_EXECUTABLES=1")
	}

	if s.OutputFile != "" {
		if tok, ok := s.readCachedOutput(); ok {
			return tok, nil
		}
	}

	timeout := s.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", s.Command)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "externalaccount: executable source command failed", err)
	}

	return s.parseResponse(stdout.Bytes())
}

func (s ExecutableSource) readCachedOutput() (string, bool) {
	raw, err := os.ReadFile(s.OutputFile)
	if err != nil {
		return "", false
	}
	tok, err := s.parseResponse(raw)
	if err != nil {
		return "", false
	}
	return tok, true
}

func (s ExecutableSource) parseResponse(raw []byte) (string, error) {
	var resp executableResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "externalaccount: failed to parse executable response", err)
	}
	if !resp.Success {
		return "", gcpautherr.Newf(gcpautherr.CredentialFileInvalid, "externalaccount: executable source reported failure: %s: %s", resp.Code, resp.Message)
	}
	if exp := time.Unix(resp.ExpirationTime, 0); resp.ExpirationTime != 0 && time.Now().After(exp) {
		return "", gcpautherr.New(gcpautherr.CredentialFileInvalid, "externalaccount: cached executable response has expired")
	}
	tok := resp.token()
	if tok == "" {
		return "", gcpautherr.New(gcpautherr.CredentialFileInvalid, "externalaccount: executable response carried no subject token")
	}
	return tok, nil
}
