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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	version "github.com/hashicorp/go-version"
)

// ManifestVersion is the schema version this build writes and the
// floor of what it accepts on verification.
const ManifestVersion = "1.0.0"

// minManifestVersion is the oldest manifest schema this build can still
// parse; manifests older than this are rejected outright.
const minManifestVersion = "1.0.0"

// ManifestEntry describes one sealed artifact belonging to a run.
type ManifestEntry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size_bytes"`
	SHA256 string `json:"sha256"`
}

// Manifest groups the artifacts produced by one test run.
type Manifest struct {
	ManifestVersion       string            `json:"manifest_version"`
	RunID                 uuid.UUID         `json:"run_id"`
	Generated             time.Time         `json:"generated"`
	ImplementationVersion string            `json:"implementation_version"`
	System                map[string]string `json:"system,omitempty"`
	Configuration         map[string]string `json:"configuration,omitempty"`
	ComplianceTargets     map[string]string `json:"compliance_targets,omitempty"`
	LogFiles              []ManifestEntry   `json:"log_files"`
}

// NewManifest starts a manifest for a fresh run with a freshly
// generated run UUID.
func NewManifest(implementationVersion string) *Manifest {
	return &Manifest{
		ManifestVersion:       ManifestVersion,
		RunID:                 uuid.New(),
		Generated:             time.Now().UTC(),
		ImplementationVersion: implementationVersion,
		System:                map[string]string{},
		Configuration:         map[string]string{},
		ComplianceTargets:     map[string]string{},
	}
}

// AddArtifact hashes the file at absPath (relative to baseDir for the
// recorded path) and appends it to the manifest's log file list. The
// file is expected to already be sealed; AddArtifact hashes the whole
// on-disk artifact, trailer included, so a verifier catches tampering
// with the trailer itself in addition to Verify's pre-trailer check.
func (m *Manifest) AddArtifact(baseDir, absPath string) error {
	f, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("seal: opening artifact %q: %w", absPath, err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("seal: hashing artifact %q: %w", absPath, err)
	}

	rel, err := filepath.Rel(baseDir, absPath)
	if err != nil {
		rel = absPath
	}
	m.LogFiles = append(m.LogFiles, ManifestEntry{
		Path:   rel,
		Size:   size,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	})
	return nil
}

// WriteFile serializes the manifest as indented JSON to path.
func (m *Manifest) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("seal: marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("seal: writing manifest %q: %w", path, err)
	}
	return nil
}

// ReadManifest parses a manifest JSON file and checks its schema
// version is compatible with this build before returning it.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seal: reading manifest %q: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("seal: parsing manifest %q: %w", path, err)
	}
	if err := checkManifestVersion(m.ManifestVersion); err != nil {
		return nil, err
	}
	return &m, nil
}

func checkManifestVersion(raw string) error {
	got, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: unparseable manifest_version %q: %v", ErrIncompatibleManifestVersion, raw, err)
	}
	min, err := version.NewVersion(minManifestVersion)
	if err != nil {
		return fmt.Errorf("seal: bad minManifestVersion constant: %w", err)
	}
	if got.LessThan(min) {
		return fmt.Errorf("%w: manifest version %s older than minimum supported %s", ErrIncompatibleManifestVersion, got, min)
	}
	return nil
}

// VerificationReport is the per-artifact outcome of VerifyManifest.
type VerificationReport struct {
	Path  string
	Valid bool
	Err   error
}

// VerifyManifest parses the manifest at manifestPath (resolving
// artifact paths relative to baseDir), then for every listed artifact
// both reseals-checks its trailer (Verify) and recomputes the
// whole-file digest recorded in the manifest. It reports one result per
// artifact; ok is true iff every artifact verified clean.
func VerifyManifest(baseDir, manifestPath string) (reports []VerificationReport, ok bool, err error) {
	m, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, false, err
	}

	ok = true
	for _, entry := range m.LogFiles {
		absPath := filepath.Join(baseDir, entry.Path)
		r := VerificationReport{Path: entry.Path}

		sealResult, verr := Verify(absPath)
		if verr != nil {
			r.Err = verr
			r.Valid = false
			ok = false
			reports = append(reports, r)
			continue
		}
		if !sealResult.Valid {
			r.Err = fmt.Errorf("seal: trailer digest mismatch for %q", entry.Path)
			r.Valid = false
			ok = false
			reports = append(reports, r)
			continue
		}

		f, oerr := os.Open(absPath)
		if oerr != nil {
			r.Err = fmt.Errorf("seal: opening %q: %w", absPath, oerr)
			ok = false
			reports = append(reports, r)
			continue
		}
		h := sha256.New()
		_, cerr := io.Copy(h, f)
		f.Close()
		if cerr != nil {
			r.Err = fmt.Errorf("seal: hashing %q: %w", absPath, cerr)
			ok = false
			reports = append(reports, r)
			continue
		}
		digest := hex.EncodeToString(h.Sum(nil))
		r.Valid = digest == entry.SHA256
		if !r.Valid {
			r.Err = fmt.Errorf("seal: digest mismatch for %q: manifest has %s, file has %s", entry.Path, entry.SHA256, digest)
			ok = false
		}
		reports = append(reports, r)
	}
	return reports, ok, nil
}
