// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Binary gcpauth-token resolves Application Default Credentials the same
// way the library does and prints the resulting access token, project id,
// universe domain, ID token, or signature to stdout. It exists for operators diagnosing which
// credential source a host will pick up, and for shell scripts that just
// need a bearer token.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/GoogleCloudPlatform/gcpauth/auth"
	"k8s.io/klog/v2"
)

var (
	mode         = flag.String("mode", "token", "What to print: token, project, universe-domain, id_token, or sign")
	scopes       = flag.String("scopes", "https://www.googleapis.com/auth/cloud-platform", "Comma separated OAuth2 scopes")
	quotaProject = flag.String("quota_project", "", "Quota project to bill requests to, overriding ADC's own value")
	audience     = flag.String("audience", "", "Target audience; required for -mode=id_token")
	signData     = flag.String("sign_data", "", "Base64-encoded payload to sign; required for -mode=sign")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	ctx := withShutdownSignal(context.Background())

	a, err := auth.New(auth.Options{
		Scopes:       splitScopes(*scopes),
		QuotaProject: *quotaProject,
	})
	if err != nil {
		klog.Exit(err)
	}

	out, err := run(ctx, a)
	if err != nil {
		klog.Exit(err)
	}
	fmt.Println(out)
}

func run(ctx context.Context, a *auth.Auth) (string, error) {
	switch *mode {
	case "token":
		return a.GetAccessToken(ctx)

	case "project":
		return a.GetProjectID(ctx)

	case "universe-domain":
		return a.GetUniverseDomain(ctx)

	case "id_token":
		if *audience == "" {
			return "", fmt.Errorf("gcpauth-token: -audience is required for -mode=id_token")
		}
		c, err := a.GetIDTokenClient(ctx, *audience)
		if err != nil {
			return "", err
		}
		tok, err := c.Token()
		if err != nil {
			return "", err
		}
		return tok.AccessToken, nil

	case "sign":
		payload, err := base64.StdEncoding.DecodeString(*signData)
		if err != nil {
			return "", fmt.Errorf("gcpauth-token: -sign_data is not valid base64: %w", err)
		}
		signed, err := a.Sign(ctx, payload)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(signed), nil
	}

	return "", fmt.Errorf("gcpauth-token: unrecognized -mode %q", *mode)
}

func splitScopes(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	scopes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			scopes = append(scopes, p)
		}
	}
	return scopes
}

// withShutdownSignal returns a copy of the parent context that is canceled
// when the process receives an interrupt or termination signal.
func withShutdownSignal(ctx context.Context) context.Context {
	nctx, cancel := context.WithCancel(ctx)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	go func() {
		sig := <-sigs
		klog.Infof("signal: %v", sig)
		cancel()
	}()
	return nctx
}
