package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// DefaultExtensions are the image suffixes eligible for display.
var DefaultExtensions = []string{".jpg", ".jpeg"}

// maxListingSize bounds the listing body read into memory.
const maxListingSize = 1 << 20

type entry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// Listing finds the newest artifact in a directory listing, such as the
// GitHub contents API. Names carry a sortable timestamp prefix, so the
// lexicographically greatest eligible name is the newest.
type Listing struct {
	Client *http.Client
	// URL of the listing endpoint.
	URL string
	// RawBase, when set, is joined with the resolved name to build the
	// download URL. Otherwise the entry's download_url is used.
	RawBase string
	// Extensions defaults to DefaultExtensions. Matching ignores case.
	Extensions []string
}

func (l *Listing) client() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return http.DefaultClient
}

func (l *Listing) Locate(ctx context.Context) (Ref, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return Ref{}, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := l.client().Do(req)
	if err != nil {
		return Ref{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Ref{}, fmt.Errorf("source: listing request failed: %s", resp.Status)
	}

	var entries []entry
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListingSize)).Decode(&entries); err != nil {
		return Ref{}, fmt.Errorf("source: parse listing: %w", err)
	}

	best, ok := l.latest(entries)
	if !ok {
		return Ref{}, ErrNoArtifact
	}
	u, err := l.downloadURL(best)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Name: best.Name, URL: u}, nil
}

func (l *Listing) latest(entries []entry) (entry, bool) {
	var best entry
	found := false
	for _, e := range entries {
		if e.Type != "file" || e.Name == "" || !l.eligible(e.Name) {
			continue
		}
		if !found || e.Name > best.Name {
			best = e
			found = true
		}
	}
	return best, found
}

func (l *Listing) eligible(name string) bool {
	exts := l.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func (l *Listing) downloadURL(e entry) (string, error) {
	if l.RawBase != "" {
		return strings.TrimRight(l.RawBase, "/") + "/" + url.PathEscape(e.Name), nil
	}
	if e.DownloadURL == "" {
		return "", fmt.Errorf("source: %q has no download_url and no raw base is configured", e.Name)
	}
	return e.DownloadURL, nil
}
