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

// Package envdetect classifies the runtime environment (CloudRun,
// CloudFunctions, AppEngine, KubernetesEngine, ComputeEngine, or none) by
// the same first-match-wins rule table gcloud's own client libraries use,
// caching the classification process-wide.
package envdetect

import (
	"context"
	"os"
	"sync"

	"cloud.google.com/go/compute/metadata"
	"github.com/GoogleCloudPlatform/gcpauth/internal/envvar"
)

// Environment identifies the detected runtime.
type Environment string

const (
	CloudRun         Environment = "CloudRun"
	CloudFunctions   Environment = "CloudFunctions"
	AppEngine        Environment = "AppEngine"
	KubernetesEngine Environment = "KubernetesEngine"
	ComputeEngine    Environment = "ComputeEngine"
	None             Environment = "None"
)

var (
	once   sync.Once
	cached Environment
)

// Detect classifies the current runtime environment, caching the result
// process-wide until Reset is called.
func Detect(ctx context.Context, metadataClient *metadata.Client) Environment {
	once.Do(func() {
		cached = detect(ctx, metadataClient)
	})
	return cached
}

// Reset clears the process-wide cache; tests use this to re-probe after
// mutating the environment.
func Reset() {
	once = sync.Once{}
}

func detect(ctx context.Context, metadataClient *metadata.Client) Environment {
	onGCE := !skipGCECheck() && metadataClient.OnGCE()

	if _, present := envvar.KConfiguration.Lookup(); present && onGCE {
		return CloudRun
	}
	if _, present := envvar.FunctionName.Lookup(); present {
		return CloudFunctions
	}
	if _, present := envvar.FunctionTarget.Lookup(); present {
		return CloudFunctions
	}
	if _, present := envvar.GAEService.Lookup(); present {
		return AppEngine
	}
	if onGCE {
		if _, err := metadataClient.GetWithContext(ctx, "instance/attributes/cluster-name"); err == nil {
			return KubernetesEngine
		}
		return ComputeEngine
	}
	return None
}

// skipGCECheck reports whether NO_GCE_CHECK opts the process out of the
// metadata probe entirely, a faster path some serverless environments
// set to avoid the probe's connection-timeout cost.
func skipGCECheck() bool {
	v, _ := envvar.NoGCECheck.Bool()
	return v || os.Getenv(envvar.NoGCECheck.Name) == "True"
}
