//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package file

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileExistsSuccess(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(file, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if !Exists(file, TypeFile) {
		t.Errorf("Exists(%s) = false, want true", file)
	}

	if Exists(file, TypeDir) {
		t.Errorf("Exists(%s, TypeDir) = true, want false", file)
	}

	if !Exists(t.TempDir(), TypeDir) {
		t.Errorf("Exists(%s) = false, want true", t.TempDir())
	}
}

func TestFileExistsFailure(t *testing.T) {
	file := "/proc/unknown"
	if Exists(file, TypeFile) {
		t.Errorf("Exists(%s, TypeFile) = true, want false", file)
	}

	if Exists(file, TypeDir) {
		t.Errorf("Exists(%s, TypeDir) = true, want false", file)
	}
}

func TestOpenAppend(t *testing.T) {
	tests := []struct {
		name         string
		existing     string
		existingPerm os.FileMode
		opts         Options
		writes       []string
		want         string
		wantPerm     os.FileMode
	}{
		{
			name:     "new_file_in_new_dir",
			opts:     Options{Perm: 0600, DirPerm: 0700},
			writes:   []string{"alice,pass1\n"},
			want:     "alice,pass1\n",
			wantPerm: 0600,
		},
		{
			name:         "append_to_existing",
			existing:     "bob,pass0\n",
			existingPerm: 0600,
			opts:         Options{Perm: 0600, DirPerm: 0700},
			writes:       []string{"alice,pass1\n", "carol,pass2\n"},
			want:         "bob,pass0\nalice,pass1\ncarol,pass2\n",
			wantPerm:     0600,
		},
		{
			name:         "force_tighter_permissions",
			existing:     "line\n",
			existingPerm: 0666,
			opts:         Options{Perm: 0640, DirPerm: 0700, ForcePerm: true},
			writes:       []string{"next\n"},
			want:         "line\nnext\n",
			wantPerm:     0640,
		},
		{
			name:         "keep_existing_permissions",
			existing:     "line\n",
			existingPerm: 0640,
			opts:         Options{Perm: 0644, DirPerm: 0700},
			writes:       []string{"next\n"},
			want:         "line\nnext\n",
			wantPerm:     0640,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "nested", "dir")
			path := filepath.Join(dir, "out")
			if tc.existing != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					t.Fatalf("os.MkdirAll(%q) failed: %v", dir, err)
				}
				if err := os.WriteFile(path, []byte(tc.existing), tc.existingPerm); err != nil {
					t.Fatalf("os.WriteFile(%q) failed: %v", path, err)
				}
				if err := os.Chmod(path, tc.existingPerm); err != nil {
					t.Fatalf("os.Chmod(%q) failed: %v", path, err)
				}
			}

			f, err := OpenAppend(path, tc.opts)
			if err != nil {
				t.Fatalf("OpenAppend(%q) failed: %v", path, err)
			}
			for _, w := range tc.writes {
				if _, err := f.WriteString(w); err != nil {
					t.Fatalf("WriteString(%q) failed: %v", w, err)
				}
			}
			if err := f.Close(); err != nil {
				t.Fatalf("Close() failed: %v", err)
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("os.ReadFile(%q) failed: %v", path, err)
			}
			if string(got) != tc.want {
				t.Errorf("OpenAppend(%q) resulted in contents %q, want %q", path, got, tc.want)
			}

			stat, err := os.Stat(path)
			if err != nil {
				t.Fatalf("os.Stat(%q) failed: %v", path, err)
			}
			if stat.Mode().Perm() != tc.wantPerm {
				t.Errorf("OpenAppend(%q) resulted in mode %v, want %v", path, stat.Mode().Perm(), tc.wantPerm)
			}
		})
	}
}

func TestOpenAppendError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0644); err != nil {
		t.Fatalf("os.WriteFile(%q) failed: %v", blocker, err)
	}

	path := filepath.Join(blocker, "out")
	if _, err := OpenAppend(path, Options{Perm: 0600, DirPerm: 0700}); err == nil {
		t.Errorf("OpenAppend(%q) succeeded, want error when parent is a regular file", path)
	}
}
