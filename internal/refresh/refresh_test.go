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

package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenFetchesOnce(t *testing.T) {
	var calls int32
	e := New("test-fetch-once", func(ctx context.Context) (*oauth2.Token, error) {
		atomic.AddInt32(&calls, 1)
		return &oauth2.Token{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}, nil
	})

	tok, err := e.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if tok.AccessToken != "tok" {
		t.Errorf("AccessToken = %q, want tok", tok.AccessToken)
	}

	if _, err := e.Token(context.Background()); err != nil {
		t.Fatalf("second Token() failed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch called %d times, want 1", got)
	}
}

func TestTokenCoalescesConcurrentRefresh(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	e := New("test-coalesce", func(ctx context.Context) (*oauth2.Token, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &oauth2.Token{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Token(context.Background()); err != nil {
				t.Errorf("Token() failed: %v", err)
			}
		}()
	}
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch called %d times, want 1", got)
	}
}

func TestTokenPropagatesFetchError(t *testing.T) {
	wantErr := fmt.Errorf("boom")
	e := New("test-error", func(ctx context.Context) (*oauth2.Token, error) {
		return nil, wantErr
	})
	if _, err := e.Token(context.Background()); err != wantErr {
		t.Errorf("Token() error = %v, want %v", err, wantErr)
	}
}

func TestTokenRefreshesWithinEagerWindow(t *testing.T) {
	var calls int32
	e := New("test-eager", func(ctx context.Context) (*oauth2.Token, error) {
		n := atomic.AddInt32(&calls, 1)
		return &oauth2.Token{AccessToken: fmt.Sprintf("tok-%d", n), Expiry: time.Now().Add(time.Minute)}, nil
	}, WithEagerRefreshThreshold(5*time.Minute))

	first, err := e.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if first.AccessToken != "tok-1" {
		t.Fatalf("AccessToken = %q, want tok-1", first.AccessToken)
	}

	// The cached token expires in 1 minute but the eager window is 5
	// minutes, so it should already be considered stale and refreshed.
	second, err := e.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if second.AccessToken != "tok-2" {
		t.Errorf("AccessToken = %q, want tok-2 (expected a refresh within the eager window)", second.AccessToken)
	}
}

func TestTokenReturnsStaleTokenWhenForceRefreshOnFailure(t *testing.T) {
	var fail int32
	e := New("test-force-refresh", func(ctx context.Context) (*oauth2.Token, error) {
		if atomic.LoadInt32(&fail) == 1 {
			return nil, fmt.Errorf("refresh failed")
		}
		return &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(time.Millisecond)}, nil
	}, WithEagerRefreshThreshold(time.Hour), WithForceRefreshOnFailure(true))

	first, err := e.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}

	atomic.StoreInt32(&fail, 1)
	second, err := e.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() should have returned the stale token instead of an error, got: %v", err)
	}
	if second.AccessToken != first.AccessToken {
		t.Errorf("AccessToken = %q, want stale token %q", second.AccessToken, first.AccessToken)
	}
}

func TestTokenPropagatesFailureWithoutForceRefreshOnFailure(t *testing.T) {
	e := New("test-no-force-refresh", func(ctx context.Context) (*oauth2.Token, error) {
		return nil, fmt.Errorf("refresh failed")
	})
	if _, err := e.Token(context.Background()); err == nil {
		t.Error("Token() succeeded, want error since ForceRefreshOnFailure defaults to false")
	}
}

func TestResetForcesRefetch(t *testing.T) {
	var calls int32
	e := New("test-reset", func(ctx context.Context) (*oauth2.Token, error) {
		atomic.AddInt32(&calls, 1)
		return &oauth2.Token{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}, nil
	})
	if _, err := e.Token(context.Background()); err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	e.Reset()
	if _, err := e.Token(context.Background()); err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("fetch called %d times, want 2", got)
	}
}
