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

// Package gcpautherr defines the typed error taxonomy shared across the
// ADC resolver and credential clients.
package gcpautherr

import "fmt"

// Kind identifies a class of failure a caller may want to branch on.
type Kind string

const (
	ConfigConflict           Kind = "CONFIG_CONFLICT"
	CredentialFileInvalid    Kind = "CREDENTIAL_FILE_INVALID"
	UnrecognizedCredential   Kind = "UNRECOGNIZED_CREDENTIAL_TYPE"
	ADCNotFound              Kind = "ADC_NOT_FOUND"
	ProjectIDUndetectable    Kind = "PROJECT_ID_UNDETECTABLE"
	TokenRefreshFailed       Kind = "TOKEN_REFRESH_FAILED"
	MetadataUnavailable      Kind = "METADATA_UNAVAILABLE"
	IDTokenUnsupported       Kind = "ID_TOKEN_UNSUPPORTED"
	SignUnsupported          Kind = "SIGN_UNSUPPORTED"
	UniverseMismatch         Kind = "UNIVERSE_MISMATCH"
	Network                  Kind = "NETWORK"
)

// Error is a Kind-tagged error that wraps an optional underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gcpauth: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("gcpauth: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target carries the same Kind, allowing
// errors.Is(err, gcpautherr.New(gcpautherr.ADCNotFound, "")) style checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error of the given kind wrapping err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Newf is New with a formatted message; it wraps no cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
