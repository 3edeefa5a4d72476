// Package change decides whether a fetched artifact differs from what the
// panel already shows.
package change

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/AndreRenaud/eink_frame/marker"
)

// Strategy selects how an artifact is identified. A deployment uses exactly
// one strategy; markers written under one are meaningless to the other.
type Strategy string

const (
	// ByName identifies an artifact by its resolved source name. Only
	// correct when names are unique per content, e.g. timestamped files.
	ByName Strategy = "name"
	// ByContent identifies an artifact by the SHA-256 of its bytes.
	ByContent Strategy = "content"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case ByName, ByContent:
		return Strategy(s), nil
	case "":
		return ByName, nil
	}
	return "", fmt.Errorf("change: unknown strategy %q", s)
}

// NeedsContent reports whether Identify reads the artifact bytes. When it
// does not, the comparison can happen before downloading anything.
func (s Strategy) NeedsContent() bool {
	return s == ByContent
}

// Identify returns the identifier of an artifact.
func (s Strategy) Identify(name string, data []byte) string {
	if s == ByContent {
		return Digest(data)
	}
	return name
}

// Digest is the lower case hex SHA-256 of data, 64 characters long.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Changed reports whether id differs from the stored marker. An empty
// stored marker never matches, so the first cycle always renders.
func Changed(stored marker.State, id string) bool {
	return stored.Empty() || stored.Marker != id
}
