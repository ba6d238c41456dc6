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

import "errors"

var (
	// ErrPrivilege is returned when the provisioner is not run with elevated
	// privileges.
	ErrPrivilege = errors.New("insufficient privilege")
	// ErrUsage is returned when the input file is missing or unreadable.
	ErrUsage = errors.New("usage error")
	// ErrAlreadyExists marks a record skipped because its user exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrCreation marks a failure to look up or create a user or group.
	ErrCreation = errors.New("creation failure")
	// ErrAssignment marks a failure to add a user to a group.
	ErrAssignment = errors.New("assignment failure")
	// ErrPasswordSet marks a failure to generate or apply a password.
	ErrPasswordSet = errors.New("password failure")
	// ErrCredentialWrite marks a failure to persist a generated password.
	ErrCredentialWrite = errors.New("credential write failure")
)
