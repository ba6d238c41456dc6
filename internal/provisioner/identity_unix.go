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

//go:build unix

package provisioner

import (
	"context"

	"github.com/Vividebbs/provisioner/internal/accounts"
)

// SystemStore is the IdentityStore of the running host.
type SystemStore struct{}

// NewSystemStore returns an IdentityStore backed by the host's account
// management commands.
func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

// UserExists implements IdentityStore.
func (*SystemStore) UserExists(ctx context.Context, name string) (bool, error) {
	_, err := accounts.FindUser(ctx, name)
	if err == nil {
		return true, nil
	}
	if accounts.IsUnknownUser(err) {
		return false, nil
	}
	return false, err
}

// GroupExists implements IdentityStore.
func (*SystemStore) GroupExists(ctx context.Context, name string) (bool, error) {
	_, err := accounts.FindGroup(ctx, name)
	if err == nil {
		return true, nil
	}
	if accounts.IsUnknownGroup(err) {
		return false, nil
	}
	return false, err
}

// CreateUser implements IdentityStore.
func (*SystemStore) CreateUser(ctx context.Context, name string) error {
	return accounts.CreateUser(ctx, &accounts.User{Username: name})
}

// CreateGroup implements IdentityStore.
func (*SystemStore) CreateGroup(ctx context.Context, name string) error {
	return accounts.CreateGroup(ctx, name)
}

// AddUserToGroup implements IdentityStore.
func (*SystemStore) AddUserToGroup(ctx context.Context, user, group string) error {
	return accounts.AddUserToGroup(ctx, &accounts.User{Username: user}, &accounts.Group{Name: group})
}

// SetPassword implements IdentityStore.
func (*SystemStore) SetPassword(ctx context.Context, user, password string) error {
	return accounts.SetPassword(ctx, &accounts.User{Username: user}, password)
}
