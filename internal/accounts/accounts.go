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

// Package accounts queries and mutates the host's user and group databases.
package accounts

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/GoogleCloudPlatform/galog"
)

// passwordAlphabet is the set of characters generated passwords are drawn
// from.
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var (
	// ErrInvalidName is returned for user and group names that cannot be passed
	// safely to the account commands.
	ErrInvalidName = errors.New("invalid name")

	whiteSpaceRegexp = regexp.MustCompile(`\s`)
)

// ValidateName validates a user or group name. Empty names, names containing
// whitespace or a colon and names starting with a dash are rejected.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: it is empty", ErrInvalidName)
	}
	if whiteSpaceRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: whitespace detected", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("%w %q: starts with a dash", ErrInvalidName, name)
	}
	// ":" separates the fields of the passwd, group and chpasswd formats.
	if strings.Contains(name, ":") {
		return fmt.Errorf("%w %q: colon detected", ErrInvalidName, name)
	}
	return nil
}

// User is the representation of a passwd database entry.
type User struct {
	// Username is the username of the user.
	Username string
	// UID is the user id of the user.
	UID string
	// GID is the primary group id of the user.
	GID string
	// Name is the full name of the user.
	Name string
	// HomeDir is the home directory of the user.
	HomeDir string
	// Shell is the login shell of the user.
	Shell string
}

// Group is the representation of a group database entry.
type Group struct {
	// Name is the name of the group.
	Name string
	// GID is the group id of the group.
	GID string
	// Members is the list of members of the group.
	Members []string
}

// GeneratePassword generates a random password of the given length, each
// character drawn uniformly from [A-Za-z0-9] using crypto/rand.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid password length %d", length)
	}

	galog.V(2).Debugf("Generating %d characters password", length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	pwd := make([]byte, length)

	for i := range pwd {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		pwd[i] = passwordAlphabet[idx.Int64()]
	}

	return string(pwd), nil
}
