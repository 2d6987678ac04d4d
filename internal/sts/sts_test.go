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

package sts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
)

func TestExchangeTokenSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() failed: %v", err)
		}
		if got := r.FormValue("subject_token"); got != "subj-tok" {
			t.Errorf("subject_token = %q, want subj-tok", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	req := &TokenExchangeRequest{
		Audience:           "//iam.googleapis.com/projects/123/locations/global/workloadIdentityPools/p/providers/p",
		RequestedTokenType: "urn:ietf:params:oauth:token-type:access_token",
		SubjectToken:       "subj-tok",
		SubjectTokenType:   "urn:ietf:params:oauth:token-type:jwt",
	}
	resp, err := ExchangeToken(context.Background(), srv.Client(), srv.URL, req, ClientAuthentication{}, nil, nil)
	if err != nil {
		t.Fatalf("ExchangeToken() failed: %v", err)
	}
	if resp.AccessToken != "at" {
		t.Errorf("AccessToken = %q, want at", resp.AccessToken)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", resp.ExpiresIn)
	}
}

func TestExchangeTokenHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_request"}`))
	}))
	defer srv.Close()

	req := &TokenExchangeRequest{SubjectToken: "t", SubjectTokenType: "urn:x"}
	_, err := ExchangeToken(context.Background(), srv.Client(), srv.URL, req, ClientAuthentication{}, nil, nil)
	if err == nil {
		t.Fatal("ExchangeToken() succeeded, want error")
	}
	aerr, ok := err.(*gcpautherr.Error)
	if !ok || aerr.Kind != gcpautherr.TokenRefreshFailed {
		t.Fatalf("ExchangeToken() error = %v, want kind %s", err, gcpautherr.TokenRefreshFailed)
	}
}

func TestExchangeTokenBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "csec" {
			t.Errorf("BasicAuth() = %q/%q, %v; want cid/csec", user, pass, ok)
		}
		w.Write([]byte(`{"access_token":"at","expires_in":60}`))
	}))
	defer srv.Close()

	req := &TokenExchangeRequest{SubjectToken: "t", SubjectTokenType: "urn:x"}
	auth := ClientAuthentication{ClientID: "cid", ClientSecret: "csec"}
	if _, err := ExchangeToken(context.Background(), srv.Client(), srv.URL, req, auth, nil, nil); err != nil {
		t.Fatalf("ExchangeToken() failed: %v", err)
	}
}

func TestExchangeTokenOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() failed: %v", err)
		}
		if !strings.Contains(r.FormValue("options"), "userProject") {
			t.Errorf("options = %q, want to contain userProject", r.FormValue("options"))
		}
		w.Write([]byte(`{"access_token":"at","expires_in":60}`))
	}))
	defer srv.Close()

	req := &TokenExchangeRequest{SubjectToken: "t", SubjectTokenType: "urn:x"}
	opts := map[string]any{"userProject": "12345"}
	if _, err := ExchangeToken(context.Background(), srv.Client(), srv.URL, req, ClientAuthentication{}, nil, opts); err != nil {
		t.Fatalf("ExchangeToken() failed: %v", err)
	}
}
