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

package build

import "fmt"

// SizeOverflowError reports a bin-size computation that would overflow the
// sizes the ibf package can address — an unreasonably large cardinality or
// an unreasonably small false positive rate.
type SizeOverflowError struct {
	Cardinality uint64
	Reason      string
}

func (e *SizeOverflowError) Error() string {
	return fmt.Sprintf("bin size overflow for cardinality %d: %s", e.Cardinality, e.Reason)
}

// InvalidConfigError mirrors layout.InvalidConfigError for the subset of
// fields Config owns.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid build config field %q: %s", e.Field, e.Reason)
}
