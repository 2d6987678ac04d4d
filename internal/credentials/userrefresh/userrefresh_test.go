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

package userrefresh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() failed: %v", err)
		}
		if got := r.FormValue("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.FormValue("refresh_token"); got != "rt" {
			t.Errorf("refresh_token = %q, want rt", got)
		}
		w.Write([]byte(`{"access_token":"at","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	c := New(Config{ClientID: "cid", ClientSecret: "csec", RefreshToken: "rt", TokenURL: srv.URL}, srv.Client())
	tok, err := c.Token()
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if tok.AccessToken != "at" {
		t.Errorf("AccessToken = %q, want at", tok.AccessToken)
	}
}

func TestIDTokenFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() failed: %v", err)
		}
		if got := r.FormValue("target_audience"); got != "https://example.com" {
			t.Errorf("target_audience = %q, want https://example.com", got)
		}
		w.Write([]byte(`{"id_token":"idt","expires_in":3600}`))
	}))
	defer srv.Close()

	c := New(Config{ClientID: "cid", ClientSecret: "csec", RefreshToken: "rt", TokenURL: srv.URL}, srv.Client())
	tok, err := c.IDToken(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("IDToken() failed: %v", err)
	}
	if tok.AccessToken != "idt" {
		t.Errorf("AccessToken = %q, want idt", tok.AccessToken)
	}
}

func TestProjectIDUndetectable(t *testing.T) {
	c := New(Config{ClientID: "cid"}, http.DefaultClient)
	if _, err := c.ProjectID(context.Background()); err == nil {
		t.Error("ProjectID() succeeded, want error")
	}
}
