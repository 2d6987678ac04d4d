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

// Package signer implements local RS256 signing over a service account's
// PEM private key, used both to mint self-signed JWTs and to satisfy
// Facade.Sign when a private key is available locally.
package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

// ParsePrivateKey accepts a PEM-encoded RSA private key in either PKCS#1
// or PKCS#8 form.
func ParsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, fmt.Errorf("signer: could not decode PEM block containing private key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("signer: could not parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signer: private key is not an RSA key")
	}
	return key, nil
}

// SignRS256 signs data with RS256 (RSASSA-PKCS1-v1_5 using SHA-256) and
// returns the raw signature bytes.
func SignRS256(key *rsa.PrivateKey, data []byte) ([]byte, error) {
	sum := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sum[:])
	if err != nil {
		return nil, fmt.Errorf("signer: failed to sign: %w", err)
	}
	return sig, nil
}

// EncodeSegment base64url-encodes without padding, the encoding JWT
// segments and the IAM signBlob response both use.
func EncodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}
