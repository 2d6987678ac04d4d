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

// Package envvar centralizes the environment variables the ADC resolver
// and credential clients consult, each with its fallback behavior spelled
// out in one place instead of scattered os.Getenv calls.
package envvar

import (
	"fmt"
	"os"
	"strconv"
)

// Var is a named OS environment variable with a default and a
// required/optional policy.
type Var struct {
	Name         string
	DefaultValue string
	Required     bool
}

// Value returns the environment variable's value, the default if unset and
// not required, or an error if unset and required.
func (v Var) Value() (string, error) {
	if val, ok := os.LookupEnv(v.Name); ok {
		return val, nil
	}
	if v.Required {
		return "", fmt.Errorf("%s: a required OS environment variable is not present", v.Name)
	}
	return v.DefaultValue, nil
}

// Lookup is like Value but also returns whether the variable was actually
// set in the environment (as opposed to falling back to the default).
func (v Var) Lookup() (value string, present bool) {
	val, ok := os.LookupEnv(v.Name)
	if !ok {
		return v.DefaultValue, false
	}
	return val, true
}

// Bool parses the variable as a boolean, falling back to DefaultValue
// (itself parsed as a boolean) when unset.
func (v Var) Bool() (bool, error) {
	val, err := v.Value()
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("error parsing %s: %w", v.Name, err)
	}
	return b, nil
}

// First returns the first non-empty value among several candidate
// environment variables, checked in order — used for the upper/lower
// case variable name pairs spec.md §6 lists (e.g. GOOGLE_APPLICATION_CREDENTIALS
// and google_application_credentials).
func First(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// Well-known variables consumed throughout the resolver. Kept as package
// level values so every caller spells the same env var name.
var (
	ApplicationCredentials = []string{"GOOGLE_APPLICATION_CREDENTIALS", "google_application_credentials"}
	ProjectIDVars          = []string{"GCLOUD_PROJECT", "gcloud_project", "GOOGLE_CLOUD_PROJECT", "google_cloud_project"}

	QuotaProject = Var{Name: "GOOGLE_CLOUD_QUOTA_PROJECT"}

	HomeDir   = Var{Name: "HOME"}
	AppData   = Var{Name: "APPDATA"}

	FunctionName   = Var{Name: "FUNCTION_NAME"}
	FunctionTarget = Var{Name: "FUNCTION_TARGET"}
	KConfiguration = Var{Name: "K_CONFIGURATION"}
	GAEService     = Var{Name: "GAE_SERVICE"}

	AllowExecutables = Var{Name: "GOOGLE_EXTERNAL_ACCOUNT_ALLOW_EXECUTABLES", DefaultValue: "0"}
	NoGCECheck       = Var{Name: "NO_GCE_CHECK", DefaultValue: "false"}
)
