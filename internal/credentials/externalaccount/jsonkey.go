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
	"encoding/json"
	"fmt"
)

// extractSubjectTokenField pulls a named string field out of a JSON
// object payload, the way a file- or URL-sourced subject token in "json"
// format carries the real token nested under subject_token_field_name
// (e.g. "access_token" for Azure-issued tokens).
func extractSubjectTokenField(payload []byte, field string) (string, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return "", fmt.Errorf("invalid JSON format for subject token field extraction: %w", err)
	}
	value, ok := data[field]
	if !ok {
		return "", fmt.Errorf("field %q not found in subject token JSON", field)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", field)
	}
	return s, nil
}
