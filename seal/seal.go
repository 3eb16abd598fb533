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

// Package seal implements the audit-log integrity protocol: a
// content-addressed trailer appended to a log artifact so downstream
// validation tooling can detect tampering, plus a run manifest
// grouping sealed artifacts by run UUID.
package seal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Algorithm is the digest algorithm name recorded in every trailer.
// SHA-256 is the only supported algorithm at this layer.
const Algorithm = "SHA-256"

// trailerMarker terminates a seal trailer and is searched for from the
// end of the file to locate the trailer's start.
const trailerMarker = "# END-OF-SEAL"

// timeFormat is the ISO 8601 UTC rendering used for the SEALED field.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Result is what Verify reports about a sealed artifact.
type Result struct {
	Valid     bool
	Digest    string
	SealedAt  time.Time
	Algorithm string
}

// Seal computes SHA-256 over the current contents of the file at path
// and appends a trailer recording the digest, a sealing timestamp, and
// the algorithm identifier. It refuses to seal a
// file that already carries a trailer.
func Seal(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seal: reading %q: %w", path, err)
	}
	if hasTrailer(data) {
		return fmt.Errorf("%w: %s", ErrAlreadySealed, path)
	}

	trailer := buildTrailer(data, time.Now().UTC())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("seal: opening %q for append: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(trailer); err != nil {
		return fmt.Errorf("seal: writing trailer to %q: %w", path, err)
	}
	log.WithField("path", path).Debug("swclock: sealed log artifact")
	return nil
}

// SealBytes is the in-memory counterpart of Seal, for callers that hold
// artifact content without a backing file.
func SealBytes(content []byte) []byte {
	trailer := buildTrailer(content, time.Now().UTC())
	out := make([]byte, 0, len(content)+len(trailer))
	out = append(out, content...)
	out = append(out, trailer...)
	return out
}

func buildTrailer(content []byte, sealedAt time.Time) []byte {
	sum := sha256.Sum256(content)
	var b bytes.Buffer
	// Always separate the trailer from content with its own newline,
	// regardless of whether content already ends in one, so Verify can
	// reconstruct the exact hashed byte range unambiguously.
	b.WriteByte('\n')
	fmt.Fprintf(&b, "# SHA256: %s\n", hex.EncodeToString(sum[:]))
	fmt.Fprintf(&b, "# SEALED: %s\n", sealedAt.Format(timeFormat))
	fmt.Fprintf(&b, "# ALGORITHM: %s\n", Algorithm)
	b.WriteString(trailerMarker + "\n")
	return b.Bytes()
}

// hasTrailer reports whether data already ends with a well-formed seal
// trailer, without validating the digest.
func hasTrailer(data []byte) bool {
	_, _, _, err := splitTrailer(data)
	return err == nil
}

// Verify reparses the trailer appended to the file at path, rehashes
// the bytes preceding it, and reports validity.
func Verify(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("seal: reading %q: %w", path, err)
	}
	return VerifyBytes(data)
}

// VerifyBytes is the in-memory counterpart of Verify.
func VerifyBytes(data []byte) (Result, error) {
	content, digestHex, sealedAt, err := splitTrailer(data)
	if err != nil {
		return Result{}, err
	}
	sum := sha256.Sum256(content)
	got := hex.EncodeToString(sum[:])
	return Result{
		Valid:     got == digestHex,
		Digest:    digestHex,
		SealedAt:  sealedAt,
		Algorithm: Algorithm,
	}, nil
}

// splitTrailer locates the trailer block at the end of data, returning
// the content preceding it and the trailer's recorded digest/timestamp.
// It does not compare digests; callers do that.
func splitTrailer(data []byte) (content []byte, digestHex string, sealedAt time.Time, err error) {
	text := string(data)
	idx := strings.LastIndex(text, trailerMarker)
	if idx == -1 {
		return nil, "", time.Time{}, ErrNoTrailer
	}
	// walk backward from the marker over exactly the three expected
	// lines; anything else is malformed.
	before := text[:idx]
	lines := strings.Split(strings.TrimRight(before, "\n"), "\n")
	if len(lines) < 3 {
		return nil, "", time.Time{}, ErrMalformedTrailer
	}
	algLine := lines[len(lines)-1]
	sealedLine := lines[len(lines)-2]
	hashLine := lines[len(lines)-3]

	alg, ok := cutPrefix(algLine, "# ALGORITHM: ")
	if !ok || alg != Algorithm {
		return nil, "", time.Time{}, ErrMalformedTrailer
	}
	sealedStr, ok := cutPrefix(sealedLine, "# SEALED: ")
	if !ok {
		return nil, "", time.Time{}, ErrMalformedTrailer
	}
	ts, perr := time.Parse(timeFormat, sealedStr)
	if perr != nil {
		return nil, "", time.Time{}, fmt.Errorf("%w: bad SEALED timestamp: %v", ErrMalformedTrailer, perr)
	}
	digest, ok := cutPrefix(hashLine, "# SHA256: ")
	if !ok || len(digest) != hex.EncodedLen(sha256.Size) {
		return nil, "", time.Time{}, ErrMalformedTrailer
	}

	// content is everything before the three trailer lines, minus the
	// single separating newline buildTrailer always inserts.
	contentEnd := len(before) - len(hashLine) - len(sealedLine) - len(algLine) - 3
	if contentEnd < 0 {
		return nil, "", time.Time{}, ErrMalformedTrailer
	}
	c := []byte(before[:contentEnd])
	c = bytes.TrimSuffix(c, []byte("\n"))
	return c, digest, ts, nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
