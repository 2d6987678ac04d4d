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
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/GoogleCloudPlatform/gcpauth/internal/gcpautherr"
)

const defaultRegionalCredVerificationURL = "https://sts.{region}.amazonaws.com?Action=GetCallerIdentity&Version=2011-06-15"

// AWSSource discovers the ambient AWS role credentials via IMDSv2 and
// signs a GetCallerIdentity request with SigV4, serializing the signed
// request into the envelope Google's STS endpoint expects as the subject
// token for an AWS-sourced workload identity pool.
type AWSSource struct {
	RegionalCredVerificationURL string
	TargetResource              string

	imdsClient *imds.Client
}

func (s *AWSSource) client() *imds.Client {
	if s.imdsClient == nil {
		s.imdsClient = imds.New(imds.Options{})
	}
	return s.imdsClient
}

func (s *AWSSource) SubjectToken(ctx context.Context) (string, error) {
	region, err := s.region(ctx)
	if err != nil {
		return "", err
	}
	creds, err := s.credentials(ctx)
	if err != nil {
		return "", err
	}

	verificationURL := s.RegionalCredVerificationURL
	if verificationURL == "" {
		verificationURL = defaultRegionalCredVerificationURL
	}
	verificationURL = strings.ReplaceAll(verificationURL, "{region}", region)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, verificationURL, nil)
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to build AWS GetCallerIdentity request", err)
	}
	req.Header.Set("Host", req.URL.Host)
	if s.TargetResource != "" {
		req.Header.Set("x-goog-cloud-target-resource", s.TargetResource)
	}

	signer := v4.NewSigner()
	if err := signer.SignHTTP(ctx, creds, req, emptyBodySHA256, "sts", region, time.Now()); err != nil {
		return "", gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to sign AWS request", err)
	}

	return encodeAWSRequest(req, verificationURL)
}

// emptyBodySHA256 is the SHA-256 of an empty payload, the signature
// payload hash for a bodyless GetCallerIdentity POST.
const emptyBodySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func (s *AWSSource) region(ctx context.Context) (string, error) {
	resp, err := s.client().GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to discover AWS region via IMDSv2", err)
	}
	return resp.Region, nil
}

func (s *AWSSource) credentials(ctx context.Context) (aws.Credentials, error) {
	creds, err := s.client().GetCredentials(ctx, &imds.GetCredentialsInput{})
	if err != nil {
		return aws.Credentials{}, gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to discover AWS role credentials via IMDSv2", err)
	}
	return aws.Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.Token,
	}, nil
}

// awsRequestEnvelope is the JSON shape Google's STS endpoint expects for
// an AWS-sourced subject token: the signed GetCallerIdentity request,
// serialized as an ordered list of {key, value} header pairs plus the
// method and url.
type awsRequestEnvelope struct {
	URL            string          `json:"url"`
	Method         string          `json:"method"`
	Headers        []awsHeaderPair `json:"headers"`
}

type awsHeaderPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func encodeAWSRequest(req *http.Request, verificationURL string) (string, error) {
	headers := make([]awsHeaderPair, 0, len(req.Header)+1)
	headers = append(headers, awsHeaderPair{Key: "Host", Value: req.URL.Host})
	for k, vs := range req.Header {
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vs {
			headers = append(headers, awsHeaderPair{Key: k, Value: v})
		}
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].Key < headers[j].Key })

	envelope := awsRequestEnvelope{
		URL:     verificationURL,
		Method:  http.MethodPost,
		Headers: headers,
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return "", gcpautherr.Wrap(gcpautherr.Network, "externalaccount: failed to marshal AWS subject token envelope", err)
	}
	return url.QueryEscape(string(b)), nil
}
