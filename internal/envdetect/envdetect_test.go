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

package envdetect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/compute/metadata"
)

func testMetadataClient(t *testing.T, mux *http.ServeMux, onGCE bool) *metadata.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	if onGCE {
		t.Setenv("GCE_METADATA_HOST", strings.TrimPrefix(srv.URL, "http://"))
	} else {
		t.Setenv("GCE_METADATA_HOST", "")
	}
	return metadata.NewClient(srv.Client())
}

func TestDetectCloudFunctions(t *testing.T) {
	Reset()
	t.Setenv("FUNCTION_NAME", "my-function")
	mux := http.NewServeMux()
	env := Detect(context.Background(), testMetadataClient(t, mux, false))
	if env != CloudFunctions {
		t.Errorf("Detect() = %v, want CloudFunctions", env)
	}
}

func TestDetectAppEngine(t *testing.T) {
	Reset()
	t.Setenv("GAE_SERVICE", "default")
	mux := http.NewServeMux()
	env := Detect(context.Background(), testMetadataClient(t, mux, false))
	if env != AppEngine {
		t.Errorf("Detect() = %v, want AppEngine", env)
	}
}

func TestDetectCachesResult(t *testing.T) {
	Reset()
	t.Setenv("GAE_SERVICE", "default")
	mux := http.NewServeMux()
	client := testMetadataClient(t, mux, false)
	first := Detect(context.Background(), client)

	t.Setenv("GAE_SERVICE", "")
	t.Setenv("FUNCTION_NAME", "fn")
	second := Detect(context.Background(), client)
	if second != first {
		t.Errorf("Detect() changed without Reset(): got %v after %v", second, first)
	}
}
