package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"logdb-backup/internal/config"
	opserrors "logdb-backup/internal/errors"
)

// Store is the local artifact store, laid out as
// <base>/<tier>/<artifact> with one manifest sidecar per artifact.
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// BaseDir returns the store root.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// TierDir returns the directory for a tier, creating it if needed.
func (s *Store) TierDir(tier Tier) (string, error) {
	dir := filepath.Join(s.baseDir, string(tier))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", opserrors.NewStorageError("failed to create tier directory "+dir, err)
	}
	return dir, nil
}

// WriteManifest writes the sidecar for an artifact.
func (s *Store) WriteManifest(artifactPath string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return opserrors.NewStorageError("failed to marshal manifest", err)
	}
	if err := os.WriteFile(ManifestPath(artifactPath), data, 0o640); err != nil {
		return opserrors.NewStorageError("failed to write manifest", err)
	}
	return nil
}

// ReadManifest loads the sidecar for an artifact. Returns a not-found
// error when the sidecar does not exist.
func (s *Store) ReadManifest(artifactPath string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(artifactPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, opserrors.NewNotFoundError("no manifest for artifact "+filepath.Base(artifactPath), err)
		}
		return nil, opserrors.NewStorageError("failed to read manifest", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, opserrors.NewStorageError("failed to unmarshal manifest", err)
	}
	return &manifest, nil
}

// ListTier enumerates artifacts in one tier, newest first. Manifest
// sidecars themselves are not artifacts.
func (s *Store) ListTier(tier Tier) ([]*Artifact, error) {
	dir := filepath.Join(s.baseDir, string(tier))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, opserrors.NewStorageError("failed to read tier directory "+dir, err)
	}

	var artifacts []*Artifact
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ManifestSuffix) {
			continue
		}
		parsed, err := ParseArtifactName(entry.Name())
		if err != nil {
			// Foreign files in the tier dir are left alone.
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifact := &Artifact{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Tier:    tier,
			Kind:    parsed.Kind,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}
		if manifest, err := s.ReadManifest(artifact.Path); err == nil {
			artifact.Manifest = manifest
		}
		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].ModTime.After(artifacts[j].ModTime)
	})
	return artifacts, nil
}

// ListAll enumerates every tier, newest first within each tier.
func (s *Store) ListAll() ([]*Artifact, error) {
	var all []*Artifact
	for _, tier := range AllTiers() {
		artifacts, err := s.ListTier(tier)
		if err != nil {
			return nil, err
		}
		all = append(all, artifacts...)
	}
	return all, nil
}

// Delete removes an artifact and its manifest sidecar.
func (s *Store) Delete(artifact *Artifact) error {
	if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
		return opserrors.NewStorageError("failed to delete artifact "+artifact.Name, err)
	}
	if err := os.Remove(ManifestPath(artifact.Path)); err != nil && !os.IsNotExist(err) {
		return opserrors.NewStorageError("failed to delete manifest for "+artifact.Name, err)
	}
	return nil
}

// Resolve describes an artifact at an arbitrary path, preferring its
// manifest over name parsing.
func (s *Store) Resolve(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, opserrors.NewNotFoundError("artifact not found: "+path, err)
		}
		return nil, opserrors.NewStorageError("failed to stat artifact", err)
	}
	if info.IsDir() {
		return nil, opserrors.NewStorageError("artifact path is a directory: "+path, nil)
	}

	artifact := &Artifact{
		Path:    path,
		Name:    filepath.Base(path),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}

	if manifest, err := s.ReadManifest(path); err == nil {
		artifact.Manifest = manifest
		artifact.Kind = manifest.Kind
		artifact.Tier = manifest.Tier
		return artifact, nil
	}

	parsed, err := ParseArtifactName(path)
	if err != nil {
		return nil, opserrors.NewStorageError("cannot determine artifact kind: no manifest and unparseable name", err)
	}
	artifact.Kind = parsed.Kind
	artifact.Tier = parsed.Tier
	return artifact, nil
}

// ChecksumFile computes the hex SHA-256 of a file.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", opserrors.NewStorageError("failed to open file for checksum", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", opserrors.NewStorageError("failed to checksum file", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyKind checks a resolved artifact against the configured engine.
func VerifyKind(artifact *Artifact, kind config.EngineKind) error {
	if artifact.Kind != kind {
		return opserrors.NewConfigurationError(
			"artifact was produced by the "+string(artifact.Kind)+" engine but the configured engine is "+string(kind), nil)
	}
	return nil
}
