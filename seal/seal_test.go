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

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestSealVerifyRoundTrip is invariant 7 of spec section 8: verify(seal(file)) = valid.
func TestSealVerifyRoundTrip(t *testing.T) {
	path := writeTempFile(t, "timestamp_ns,te_ns\n1,100\n2,110\n")
	require.NoError(t, Seal(path))

	result, err := Verify(path)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, Algorithm, result.Algorithm)
}

// TestSealVerifyDetectsTamper is the other half of invariant 7: flipping
// one byte of pre-trailer content invalidates the seal.
func TestSealVerifyDetectsTamper(t *testing.T) {
	path := writeTempFile(t, "timestamp_ns,te_ns\n1,100\n2,110\n")
	require.NoError(t, Seal(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// flip a byte well inside the pre-trailer content.
	data[5] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	result, err := Verify(path)
	require.NoError(t, err)
	require.False(t, result.Valid)
}

func TestSealRefusesDoubleSeal(t *testing.T) {
	path := writeTempFile(t, "a,b\n1,2\n")
	require.NoError(t, Seal(path))
	err := Seal(path)
	require.ErrorIs(t, err, ErrAlreadySealed)
}

func TestVerifyNoTrailer(t *testing.T) {
	path := writeTempFile(t, "a,b\n1,2\n")
	_, err := Verify(path)
	require.ErrorIs(t, err, ErrNoTrailer)
}

func TestVerifyMalformedTrailer(t *testing.T) {
	path := writeTempFile(t, "a,b\n1,2\n# SHA256: not-enough-lines\n# END-OF-SEAL\n")
	_, err := Verify(path)
	require.ErrorIs(t, err, ErrMalformedTrailer)
}

func TestSealEmptyFile(t *testing.T) {
	path := writeTempFile(t, "")
	require.NoError(t, Seal(path))
	result, err := Verify(path)
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestSealContentWithoutTrailingNewline(t *testing.T) {
	path := writeTempFile(t, "a,b\n1,2")
	require.NoError(t, Seal(path))
	result, err := Verify(path)
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestSealBytesVerifyBytesRoundTrip(t *testing.T) {
	content := []byte("x,y\n1,1\n2,2\n")
	sealed := SealBytes(content)
	result, err := VerifyBytes(sealed)
	require.NoError(t, err)
	require.True(t, result.Valid)
}
