package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stilllift/pkg/tracker"
	"stilllift/pkg/version"
)

var (
	// ErrNotFound means the asset does not exist at the source.
	ErrNotFound = errors.New("asset not found")
	// ErrInvalidPath means the path is not under BaseDir or tries to escape it.
	ErrInvalidPath = errors.New("invalid asset path")
)

// Source fetches asset bytes by public path.
type Source interface {
	Fetch(ctx context.Context, p string) ([]byte, error)
	Name() string
}

// DirSource serves assets from a local directory mapped onto BaseDir.
type DirSource struct {
	root    string
	tracker *tracker.Tracker
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir string, t *tracker.Tracker) *DirSource {
	return &DirSource{root: dir, tracker: t}
}

// Name implements Source.
func (s *DirSource) Name() string { return "dir" }

// Root returns the directory the source reads from.
func (s *DirSource) Root() string { return s.root }

// Fetch implements Source.
func (s *DirSource) Fetch(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !IsAssetPath(p) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}

	rel := strings.TrimPrefix(p, BaseDir)
	if !fs.ValidPath(rel) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}

	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.tracker.TrackNotFound(s.Name())
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		s.tracker.TrackFailure(s.Name())
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	s.tracker.TrackSuccess(s.Name())
	return data, nil
}

// Check verifies the root directory exists.
func (s *DirSource) Check(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}

// HTTPSource fetches assets from a remote origin.
type HTTPSource struct {
	base       *url.URL
	httpClient *http.Client
	backoff    *Backoff
	tracker    *tracker.Tracker
	userAgent  string
}

// NewHTTPSource creates a source for baseURL, e.g. "https://cdn.example.com".
func NewHTTPSource(baseURL string, timeout time.Duration, b *Backoff, t *tracker.Tracker) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid asset base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid asset base url: unsupported scheme %q", u.Scheme)
	}
	return &HTTPSource{
		base:       u,
		httpClient: &http.Client{Timeout: timeout},
		backoff:    b,
		tracker:    t,
		userAgent:  fmt.Sprintf("StillLift/%s", version.Version),
	}, nil
}

// Name implements Source.
func (s *HTTPSource) Name() string { return "http" }

// URL returns the absolute URL for an asset path.
func (s *HTTPSource) URL(p string) string {
	u := *s.base
	u.Path = s.base.Path + p
	u.RawPath = ""
	return u.String()
}

// Fetch implements Source. A 404 is ErrNotFound and does not count against
// the host's backoff.
func (s *HTTPSource) Fetch(ctx context.Context, p string) ([]byte, error) {
	if !IsAssetPath(p) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}

	host := s.base.Host
	if err := s.backoff.Wait(ctx, host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(p), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			s.backoff.RecordFailure(host)
			s.tracker.TrackFailure(s.Name())
		}
		return nil, fmt.Errorf("asset request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		s.backoff.RecordSuccess(host)
		s.tracker.TrackNotFound(s.Name())
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		s.backoff.RecordFailure(host)
		s.tracker.TrackFailure(s.Name())
		return nil, fmt.Errorf("asset server error: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		s.tracker.TrackFailure(s.Name())
		return nil, fmt.Errorf("unexpected asset status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.tracker.TrackFailure(s.Name())
		return nil, fmt.Errorf("failed to read asset body: %w", err)
	}
	s.backoff.RecordSuccess(host)
	s.tracker.TrackSuccess(s.Name())
	slog.Debug("Assets: fetched", "path", p, "bytes", len(data))
	return data, nil
}

// Check requests the homepage track to confirm the origin answers.
func (s *HTTPSource) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.URL(HomepagePath), http.NoBody)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("asset origin returned %s", resp.Status)
	}
	return nil
}
