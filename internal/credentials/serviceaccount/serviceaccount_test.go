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

package serviceaccount

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testPEMKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() failed: %v", err)
	}
	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

func TestTokenExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() failed: %v", err)
		}
		if got := r.FormValue("grant_type"); got != grantType {
			t.Errorf("grant_type = %q, want %q", got, grantType)
		}
		if r.FormValue("assertion") == "" {
			t.Errorf("assertion is empty")
		}
		w.Write([]byte(`{"access_token":"at","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	cfg := Config{
		ClientEmail: "sa@project.iam.gserviceaccount.com",
		PrivateKey:  testPEMKey(t),
		ProjectID:   "proj",
		TokenURL:    srv.URL,
		Scopes:      []string{"https://www.googleapis.com/auth/cloud-platform"},
	}
	c, err := New(cfg, srv.Client())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	tok, err := c.Token()
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if tok.AccessToken != "at" {
		t.Errorf("AccessToken = %q, want at", tok.AccessToken)
	}
}

func TestSelfSignedToken(t *testing.T) {
	cfg := Config{
		ClientEmail:           "sa@project.iam.gserviceaccount.com",
		PrivateKey:            testPEMKey(t),
		UseJWTAccessWithScope: true,
		Scopes:                []string{"scope-a"},
	}
	c, err := New(cfg, http.DefaultClient)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	tok, err := c.Token()
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if strings.Count(tok.AccessToken, ".") != 2 {
		t.Errorf("AccessToken = %q, want a 3-segment JWT", tok.AccessToken)
	}
}

func TestSubjectForcesExchangeEvenWithUseJWTAccessWithScope(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{"access_token":"at","expires_in":3600}`))
	}))
	defer srv.Close()

	cfg := Config{
		ClientEmail:           "sa@project.iam.gserviceaccount.com",
		PrivateKey:            testPEMKey(t),
		UseJWTAccessWithScope: true,
		Subject:               "user@example.com",
		TokenURL:              srv.URL,
	}
	c, err := New(cfg, srv.Client())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := c.Token(); err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if !called {
		t.Error("token endpoint was not called, want exchange path when Subject is set")
	}
}

func TestProjectIDUndetectable(t *testing.T) {
	cfg := Config{ClientEmail: "sa@project.iam.gserviceaccount.com", PrivateKey: testPEMKey(t)}
	c, err := New(cfg, http.DefaultClient)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := c.ProjectID(context.Background()); err == nil {
		t.Error("ProjectID() succeeded, want error")
	}
}
