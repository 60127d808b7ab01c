package backup

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"logdb-backup/internal/config"
)

// Tier is the retention category governing an artifact's lifetime.
type Tier string

const (
	TierDaily   Tier = "daily"
	TierWeekly  Tier = "weekly"
	TierMonthly Tier = "monthly"
)

// ParseTier validates a tier argument.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierDaily:
		return TierDaily, nil
	case TierWeekly:
		return TierWeekly, nil
	case TierMonthly:
		return TierMonthly, nil
	default:
		return "", fmt.Errorf("unknown policy tier %q, must be one of: daily, weekly, monthly", s)
	}
}

// AllTiers lists every tier, used when enumerating the artifact store.
func AllTiers() []Tier {
	return []Tier{TierDaily, TierWeekly, TierMonthly}
}

// The timestamp layout embedded in artifact names.
const timestampLayout = "20060102_150405"

// ManifestSuffix is appended to the artifact name for its sidecar.
const ManifestSuffix = ".manifest.json"

// Manifest is the structured record stored alongside each artifact.
// Restore reads it instead of inferring kind and tier from the file
// name; the name-based fallback exists only for artifacts whose
// sidecar was lost.
type Manifest struct {
	ID          string            `json:"id"`
	Kind        config.EngineKind `json:"kind"`
	Tier        Tier              `json:"tier"`
	CreatedAt   time.Time         `json:"created_at"`
	Database    string            `json:"database"`
	Table       string            `json:"table"`
	RowCount    int64             `json:"row_count"`
	Compression string            `json:"compression"`
	Encrypted   bool              `json:"encrypted"`
	SizeBytes   int64             `json:"size_bytes"`
	Checksum    string            `json:"checksum"`
	ToolVersion string            `json:"tool_version"`
}

// Artifact is a single backup file in the store.
type Artifact struct {
	Path     string
	Name     string
	Tier     Tier
	Kind     config.EngineKind
	ModTime  time.Time
	Size     int64
	Manifest *Manifest // nil when the sidecar is missing
}

// extensionFor returns the raw dump extension for an engine kind.
func extensionFor(kind config.EngineKind) string {
	if kind == config.EnginePostgres {
		return "dump"
	}
	return "db"
}

// compressionSuffix maps an algorithm name to its file suffix.
func compressionSuffix(algorithm string) string {
	switch algorithm {
	case "gzip":
		return ".gz"
	case "zstd":
		return ".zst"
	case "lz4":
		return ".lz4"
	default:
		return ""
	}
}

// encryptedSuffix marks encrypted artifacts.
const encryptedSuffix = ".enc"

// ArtifactName builds the canonical artifact file name:
// <kind>_<tier>_<YYYYMMDD_HHMMSS>.<ext>[.gz|.zst|.lz4][.enc]
func ArtifactName(kind config.EngineKind, tier Tier, ts time.Time, compression string, encrypted bool) string {
	name := fmt.Sprintf("%s_%s_%s.%s", kind, tier, ts.Format(timestampLayout), extensionFor(kind))
	name += compressionSuffix(compression)
	if encrypted {
		name += encryptedSuffix
	}
	return name
}

var artifactNameRe = regexp.MustCompile(
	`^(sqlite|postgres)_(daily|weekly|monthly)_(\d{8}_\d{6})\.(db|dump)((?:\.(?:gz|zst|lz4))?)((?:\.enc)?)$`)

// ParsedName holds the fields recovered from an artifact file name.
type ParsedName struct {
	Kind        config.EngineKind
	Tier        Tier
	CreatedAt   time.Time
	Compression string
	Encrypted   bool
}

// ParseArtifactName recovers kind, tier and timestamp from a file
// name. Used as the fallback when no manifest sidecar exists; an
// artifact renamed to drop the kind substring cannot be auto-restored.
func ParseArtifactName(path string) (*ParsedName, error) {
	base := filepath.Base(path)
	m := artifactNameRe.FindStringSubmatch(base)
	if m == nil {
		return nil, fmt.Errorf("artifact name %q does not match <kind>_<tier>_<timestamp>.<ext>[.gz|.zst|.lz4][.enc]", base)
	}
	ts, err := time.Parse(timestampLayout, m[3])
	if err != nil {
		return nil, fmt.Errorf("artifact name %q has invalid timestamp: %w", base, err)
	}
	parsed := &ParsedName{
		Kind:      config.EngineKind(m[1]),
		Tier:      Tier(m[2]),
		CreatedAt: ts,
		Encrypted: m[6] == encryptedSuffix,
	}
	switch m[5] {
	case ".gz":
		parsed.Compression = "gzip"
	case ".zst":
		parsed.Compression = "zstd"
	case ".lz4":
		parsed.Compression = "lz4"
	default:
		parsed.Compression = "none"
	}
	return parsed, nil
}

// ManifestPath returns the sidecar path for an artifact path.
func ManifestPath(artifactPath string) string {
	return artifactPath + ManifestSuffix
}
