//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package accounts

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "plain", in: "alice"},
		{name: "dotted_with_dash", in: "john.doe-adm"},
		{name: "underscore_and_digits", in: "svc_web01"},
		{name: "trailing_dollar", in: "host$"},
		{name: "empty", in: "", wantErr: true},
		{name: "space", in: "evil -o -u 0", wantErr: true},
		{name: "tab", in: "a\tb", wantErr: true},
		{name: "newline", in: "alice\nroot", wantErr: true},
		{name: "leading_dash", in: "-r", wantErr: true},
		{name: "colon", in: "root:x", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateName(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateName(%q) returned error %v, want error: %t", tc.in, err, tc.wantErr)
			}
			if tc.wantErr && !errors.Is(err, ErrInvalidName) {
				t.Errorf("ValidateName(%q) returned error %v, want %v", tc.in, err, ErrInvalidName)
			}
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	for _, length := range []int{1, 12, 64} {
		pwd, err := GeneratePassword(length)
		if err != nil {
			t.Fatalf("GeneratePassword(%d) failed: %v", length, err)
		}
		if len(pwd) != length {
			t.Errorf("GeneratePassword(%d) returned %d characters, want %d", length, len(pwd), length)
		}
		for _, c := range pwd {
			if !strings.ContainsRune(passwordAlphabet, c) {
				t.Errorf("GeneratePassword(%d) = %q contains non alphanumeric %q", length, pwd, c)
			}
		}
	}
}

func TestGeneratePasswordUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		pwd, err := GeneratePassword(12)
		if err != nil {
			t.Fatalf("GeneratePassword(12) failed: %v", err)
		}
		if seen[pwd] {
			t.Fatalf("GeneratePassword(12) returned duplicate password %q", pwd)
		}
		seen[pwd] = true
	}
}

func TestGeneratePasswordInvalidLength(t *testing.T) {
	for _, length := range []int{0, -1} {
		if _, err := GeneratePassword(length); err == nil {
			t.Errorf("GeneratePassword(%d) returned nil error, want non-nil", length)
		}
	}
}
