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

package apikey

import (
	"context"
	"testing"
)

func TestKey(t *testing.T) {
	c := New("abc123")
	if c.Key() != "abc123" {
		t.Errorf("Key() = %q, want abc123", c.Key())
	}
}

func TestProjectIDUndetectable(t *testing.T) {
	c := New("abc123")
	if _, err := c.ProjectID(context.Background()); err == nil {
		t.Error("ProjectID() succeeded, want error")
	}
}
