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
	"os"
	"path/filepath"
	"testing"
)

func TestFileSourceText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("  subj-token\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	s := FileSource{Path: path}
	tok, err := s.SubjectToken(context.Background())
	if err != nil {
		t.Fatalf("SubjectToken() failed: %v", err)
	}
	if tok != "subj-token" {
		t.Errorf("SubjectToken() = %q, want subj-token", tok)
	}
}

func TestFileSourceJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	if err := os.WriteFile(path, []byte(`{"access_token":"subj-token"}`), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	s := FileSource{Path: path, Format: SubjectTokenFormat{Type: "json", FieldName: "access_token"}}
	tok, err := s.SubjectToken(context.Background())
	if err != nil {
		t.Fatalf("SubjectToken() failed: %v", err)
	}
	if tok != "subj-token" {
		t.Errorf("SubjectToken() = %q, want subj-token", tok)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	s := FileSource{Path: "/nonexistent/path/token"}
	if _, err := s.SubjectToken(context.Background()); err == nil {
		t.Error("SubjectToken() succeeded, want error")
	}
}
