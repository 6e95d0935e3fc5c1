package sources

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jingkaihe/skillmatrix/pkg/logger"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

const (
	stagingPrefix = ".staging-"
	trashPrefix   = ".trash-"
	lockSuffix    = ".lock"
)

// Cloner materializes a remote location into dest, which must not exist yet
type Cloner interface {
	Clone(ctx context.Context, loc Location, dest string) error
}

// FetchOptions controls a single fetch
type FetchOptions struct {
	ForceRefresh bool
}

// FetchResult is the local directory holding a source's content
type FetchResult struct {
	Path   string
	Cached bool // served from an existing cache entry
	Local  bool // local path source, never cached
}

// Fetcher makes sources available locally, caching remote sources per normalized URL
type Fetcher struct {
	cacheDir string
	cloner   Cloner
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithCacheDir sets the cache root directory
func WithCacheDir(dir string) FetcherOption {
	return func(f *Fetcher) {
		f.cacheDir = dir
	}
}

// WithCloner replaces the git cloner
func WithCloner(c Cloner) FetcherOption {
	return func(f *Fetcher) {
		f.cloner = c
	}
}

// DefaultCacheDir returns the user cache directory for fetched sources
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user cache directory")
	}
	return filepath.Join(dir, "skillmatrix", "sources"), nil
}

// NewFetcher creates a fetcher. Without options it caches under DefaultCacheDir and clones with git.
func NewFetcher(opts ...FetcherOption) (*Fetcher, error) {
	f := &Fetcher{}
	for _, opt := range opts {
		opt(f)
	}

	if f.cacheDir == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		f.cacheDir = dir
	}
	if f.cloner == nil {
		f.cloner = NewGitCloner()
	}

	return f, nil
}

// CacheDir returns the cache root
func (f *Fetcher) CacheDir() string { return f.cacheDir }

// CachePath returns the cache entry a remote location maps to
func (f *Fetcher) CachePath(loc Location) string {
	return filepath.Join(f.cacheDir, CacheKey(loc))
}

// FetchFromSource returns a local directory containing the source's content.
// Local paths are returned as is. Remote sources are served from the cache unless
// ForceRefresh is set, in which case they are re-cloned and swapped in atomically;
// on failure the previous cache entry is left untouched.
func (f *Fetcher) FetchFromSource(ctx context.Context, rawURL string, opts FetchOptions) (*FetchResult, error) {
	loc, err := ParseLocation(rawURL, "")
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	log := logger.G(ctx).WithField("source", loc.String())

	if loc.Local {
		info, err := os.Stat(loc.URL)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &FetchError{URL: rawURL, Err: errors.Wrap(ErrSourceNotFound, loc.URL)}
			}
			return nil, &FetchError{URL: rawURL, Err: err}
		}
		if !info.IsDir() {
			return nil, &FetchError{URL: rawURL, Err: errors.Errorf("%s is not a directory", loc.URL)}
		}
		return &FetchResult{Path: loc.URL, Local: true}, nil
	}

	target := f.CachePath(loc)
	if !opts.ForceRefresh && isDir(target) {
		log.WithField("path", target).Debug("using cached source")
		return &FetchResult{Path: target, Cached: true}, nil
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return nil, &FetchError{URL: rawURL, Err: errors.Wrap(err, "failed to create cache directory")}
	}

	unlock, err := lockedfile.MutexAt(target + lockSuffix).Lock()
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: errors.Wrap(err, "failed to lock cache entry")}
	}
	defer unlock()

	// another writer may have filled the entry while we waited
	if !opts.ForceRefresh && isDir(target) {
		return &FetchResult{Path: target, Cached: true}, nil
	}

	staging := filepath.Join(f.cacheDir, stagingPrefix+uuid.New().String())
	log.WithField("staging", staging).Debug("cloning source")
	if err := f.cloner.Clone(ctx, loc, staging); err != nil {
		os.RemoveAll(staging)
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	if err := swapDir(staging, target, f.cacheDir); err != nil {
		os.RemoveAll(staging)
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	log.WithField("path", target).Info("fetched source")
	return &FetchResult{Path: target}, nil
}

// swapDir replaces target with staging. The old target is moved aside first so
// readers only ever observe a complete tree.
func swapDir(staging, target, cacheDir string) error {
	if !isDir(target) {
		return errors.Wrap(os.Rename(staging, target), "failed to install cache entry")
	}

	trash := filepath.Join(cacheDir, trashPrefix+uuid.New().String())
	if err := os.Rename(target, trash); err != nil {
		return errors.Wrap(err, "failed to move previous cache entry aside")
	}
	if err := os.Rename(staging, target); err != nil {
		if restoreErr := os.Rename(trash, target); restoreErr != nil {
			return errors.Wrapf(err, "failed to install cache entry (previous entry left at %s)", trash)
		}
		return errors.Wrap(err, "failed to install cache entry")
	}
	return errors.Wrap(os.RemoveAll(trash), "failed to remove previous cache entry")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
