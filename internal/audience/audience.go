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

// Package audience extracts the structured fields federation needs out of
// an external_account credential's opaque STS audience string.
package audience

import (
	"fmt"
	"regexp"
)

const (
	// workloadPoolAudienceRegex matches audiences of the form
	// "//iam.googleapis.com/projects/<number>/locations/<loc>/workloadIdentityPools/<pool>/providers/<provider>".
	workloadPoolAudienceRegex = `//iam\.googleapis\.com/projects/([0-9]+)/locations/[^/]+/workloadIdentityPools/`

	// workforcePoolAudienceRegex matches audiences of the form
	// "//iam.googleapis.com/locations/<loc>/workforcePools/<pool>/providers/<provider>", which
	// carry no project number.
	workforcePoolAudienceRegex = `//iam\.googleapis\.com/locations/[^/]+/workforcePools/`
)

var (
	workloadPoolAudienceRE  = regexp.MustCompile(workloadPoolAudienceRegex)
	workforcePoolAudienceRE = regexp.MustCompile(workforcePoolAudienceRegex)
)

// IsWorkforcePoolAudience reports whether audience identifies a workforce
// identity pool (as opposed to a workload identity pool).
func IsWorkforcePoolAudience(aud string) bool {
	return workforcePoolAudienceRE.MatchString(aud)
}

// ProjectNumber extracts the project number embedded in a workload
// identity pool audience. Workforce pool audiences carry no project
// number and always return an error.
func ProjectNumber(aud string) (string, error) {
	m := workloadPoolAudienceRE.FindStringSubmatch(aud)
	if m == nil {
		return "", fmt.Errorf("audience %q does not carry a project number", aud)
	}
	return m[1], nil
}
