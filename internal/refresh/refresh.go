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

// Package refresh implements the coalesced, cached token-refresh engine
// shared by every credential client variant. Concurrent callers racing to
// refresh the same underlying credential collapse onto a single in-flight
// fetch via singleflight, rather than each issuing a redundant call to the
// token endpoint.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/gcpauth/internal/metrics"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

// DefaultEagerRefreshThreshold is how far ahead of a token's actual expiry
// the engine treats it as stale and triggers a refresh, absent an
// explicit override.
const DefaultEagerRefreshThreshold = 5 * time.Minute

// Fetcher performs the actual network round trip that mints a new token.
// Implementations live in each credential client variant.
type Fetcher func(ctx context.Context) (*oauth2.Token, error)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithEagerRefreshThreshold overrides DefaultEagerRefreshThreshold. A
// non-positive value is ignored.
func WithEagerRefreshThreshold(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.eager = d
		}
	}
}

// WithForceRefreshOnFailure makes Token return the last cached token (even
// if past its eager-refresh window) when a refresh attempt fails, instead
// of propagating the error, as long as a cached token exists.
func WithForceRefreshOnFailure(force bool) Option {
	return func(e *Engine) { e.forceRefreshOnFailure = force }
}

// Engine caches the most recently fetched token and coalesces concurrent
// refreshes through its own singleflight.Group, so a process that holds
// several Engines (one per credential client) gets independent coalescing
// groups. Metrics series are labelled by metricsKind only, so Engines of
// the same kind share them.
type Engine struct {
	metricsKind           string
	fetch                 Fetcher
	eager                 time.Duration
	forceRefreshOnFailure bool

	group singleflight.Group

	mu      sync.Mutex
	current *oauth2.Token
}

// New builds an Engine that calls fetch to mint tokens, tagging its
// coalescing metric with metricsKind (one of the metrics.Kind* constants).
func New(metricsKind string, fetch Fetcher, opts ...Option) *Engine {
	e := &Engine{
		metricsKind: metricsKind,
		fetch:       fetch,
		eager:       DefaultEagerRefreshThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// fresh reports whether tok is still usable without a refresh: present,
// carrying an access token, and either non-expiring or further than eager
// from its expiry.
func fresh(tok *oauth2.Token, eager time.Duration) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(eager).Before(tok.Expiry)
}

// Token returns a valid, non-expired token, refreshing if the cached one
// is stale or absent. Concurrent callers share a single in-flight fetch.
func (e *Engine) Token(ctx context.Context) (*oauth2.Token, error) {
	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()

	if fresh(cur, e.eager) {
		return cur, nil
	}

	v, err, shared := e.group.Do(e.metricsKind, func() (interface{}, error) {
		tok, err := e.fetch(ctx)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.current = tok
		e.mu.Unlock()
		return tok, nil
	})
	if shared {
		metrics.RecordCoalescedRefresh(e.metricsKind)
		klog.V(4).InfoS("refresh coalesced", "kind", e.metricsKind)
	}
	if err != nil {
		if e.forceRefreshOnFailure && cur != nil {
			klog.Warningf("refresh: %s: refresh failed, returning stale cached token: %v", e.metricsKind, err)
			return cur, nil
		}
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

// Reset discards the cached token, forcing the next Token call to fetch a
// fresh one even if the cached one has not technically expired yet.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.current = nil
	e.mu.Unlock()
}
