/*
 * Copyright 2026 The HIBF Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:build !linux

package seqio

import "os"

// mmapFile falls back to a plain read on platforms the teacher's mmap
// implementation doesn't cover (z/file_default.go takes the same approach
// for Truncate).
func mmapFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// munmapFile is a no-op here: mmapFile never mapped anything on this
// platform, it just read the file into a plain heap buffer.
func munmapFile(data []byte) error {
	return nil
}
