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

package provisioner

import "context"

// IdentityStore is the host's user and group database.
type IdentityStore interface {
	// UserExists reports whether the user exists. An error means existence
	// could not be determined.
	UserExists(ctx context.Context, name string) (bool, error)
	// GroupExists reports whether the group exists. An error means existence
	// could not be determined.
	GroupExists(ctx context.Context, name string) (bool, error)
	// CreateUser creates the user with a home directory, the default shell and
	// a personal group of the same name.
	CreateUser(ctx context.Context, name string) error
	// CreateGroup creates the group.
	CreateGroup(ctx context.Context, name string) error
	// AddUserToGroup makes user a member of group. It is idempotent.
	AddUserToGroup(ctx context.Context, user, group string) error
	// SetPassword sets the login password of user.
	SetPassword(ctx context.Context, user, password string) error
}
