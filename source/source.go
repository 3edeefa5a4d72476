// Package source resolves which artifact a wake cycle should fetch.
package source

import (
	"context"
	"errors"
)

// ErrNoArtifact is returned when a listing holds no eligible image.
var ErrNoArtifact = errors.New("source: no artifact available")

// Ref names an artifact and where to download it from.
type Ref struct {
	Name string
	URL  string
}

// Locator resolves the artifact for the current cycle.
type Locator interface {
	Locate(ctx context.Context) (Ref, error)
}

// Static always resolves to the same URL, which doubles as its name.
type Static struct {
	URL string
}

func (s Static) Locate(ctx context.Context) (Ref, error) {
	if s.URL == "" {
		return Ref{}, ErrNoArtifact
	}
	return Ref{Name: s.URL, URL: s.URL}, nil
}
