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
	"strings"

	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
)

// FileSource reads the subject token from a file that some external
// process keeps refreshed on disk.
type FileSource struct {
	Path   string
	Format SubjectTokenFormat
}

func (s FileSource) SubjectToken(ctx context.Context) (string, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "externalaccount: failed to read subject token file", err)
	}
	if s.Format.Type == "json" {
		tok, err := extractSubjectTokenField(raw, s.Format.FieldName)
		if err != nil {
			return "", gcpautherr.Wrap(gcpautherr.CredentialFileInvalid, "externalaccount: failed to extract subject token from file", err)
		}
		return tok, nil
	}
	return strings.TrimSpace(string(raw)), nil
}
