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
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestURLSourceText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Metadata-Flavor"); got != "my-flavor" {
			t.Errorf("Metadata-Flavor header = %q, want my-flavor", got)
		}
		w.Write([]byte("subj-token"))
	}))
	defer srv.Close()

	s := URLSource{URL: srv.URL, Headers: map[string]string{"Metadata-Flavor": "my-flavor"}, Client: srv.Client()}
	tok, err := s.SubjectToken(context.Background())
	if err != nil {
		t.Fatalf("SubjectToken() failed: %v", err)
	}
	if tok != "subj-token" {
		t.Errorf("SubjectToken() = %q, want subj-token", tok)
	}
}

func TestURLSourceJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"azure-token"}`))
	}))
	defer srv.Close()

	s := URLSource{URL: srv.URL, Format: SubjectTokenFormat{Type: "json", FieldName: "access_token"}, Client: srv.Client()}
	tok, err := s.SubjectToken(context.Background())
	if err != nil {
		t.Fatalf("SubjectToken() failed: %v", err)
	}
	if tok != "azure-token" {
		t.Errorf("SubjectToken() = %q, want azure-token", tok)
	}
}

func TestURLSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := URLSource{URL: srv.URL, Client: srv.Client()}
	if _, err := s.SubjectToken(context.Background()); err == nil {
		t.Error("SubjectToken() succeeded, want error")
	}
}
