/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package seal

import "errors"

var (
	// ErrNoTrailer is returned by Verify when a file has no seal
	// trailer at all.
	ErrNoTrailer = errors.New("seal: no trailer found")
	// ErrMalformedTrailer is returned when a trailer is present but its
	// lines don't parse.
	ErrMalformedTrailer = errors.New("seal: malformed trailer")
	// ErrAlreadySealed is returned by Seal when the artifact already
	// carries a trailer; re-sealing would hash the prior trailer's
	// bytes into a new one and silently nest seals.
	ErrAlreadySealed = errors.New("seal: artifact already sealed")
	// ErrIncompatibleManifestVersion is returned by VerifyManifest when
	// the manifest's schema version isn't compatible with this binary's.
	ErrIncompatibleManifestVersion = errors.New("seal: incompatible manifest version")
)
