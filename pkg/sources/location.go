package sources

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	githubShorthand = "github:"
	ghShorthand     = "gh:"
	fileScheme      = "file://"

	maxSlugLength = 64
)

var (
	scpLikePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+@([A-Za-z0-9.-]+):(.+)$`)
	slugPattern    = regexp.MustCompile(`[^a-z0-9._-]+`)
)

// Location is a parsed source URL
type Location struct {
	URL   string // Normalized remote URL, or cleaned absolute path for local sources
	Ref   string // Optional branch, tag or commit for remote sources
	Local bool   // True for filesystem paths
}

// String returns the canonical form used for cache keys and display
func (l Location) String() string {
	if l.Ref != "" {
		return l.URL + "@" + l.Ref
	}
	return l.URL
}

// IsLocalPath reports whether raw names a filesystem path rather than a remote
func IsLocalPath(raw string) bool {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "." || raw == "..":
		return true
	case strings.HasPrefix(raw, fileScheme):
		return true
	case strings.HasPrefix(raw, "/"), strings.HasPrefix(raw, "./"), strings.HasPrefix(raw, "../"):
		return true
	case raw == "~" || strings.HasPrefix(raw, "~/"):
		return true
	}
	return filepath.IsAbs(raw)
}

// ParseLocation normalizes a source URL. Relative local paths are resolved
// against baseDir, or the working directory when baseDir is empty.
func ParseLocation(raw, baseDir string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.New("source url cannot be empty")
	}

	if IsLocalPath(raw) {
		p, err := resolveLocalPath(raw, baseDir)
		if err != nil {
			return Location{}, err
		}
		return Location{URL: p, Local: true}, nil
	}

	for _, prefix := range []string{githubShorthand, ghShorthand} {
		if strings.HasPrefix(raw, prefix) {
			return parseGitHubShorthand(strings.TrimPrefix(raw, prefix))
		}
	}

	if m := scpLikePattern.FindStringSubmatch(raw); m != nil {
		user := strings.SplitN(raw, "@", 2)[0]
		repo, ref := splitRef(m[2])
		repo = trimRepoSuffix(repo)
		if repo == "" {
			return Location{}, errors.Errorf("invalid source url %q: missing repository path", raw)
		}
		return Location{URL: user + "@" + strings.ToLower(m[1]) + ":" + repo, Ref: ref}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, errors.Wrapf(err, "invalid source url %q", raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "http", "ssh", "git":
	default:
		return Location{}, errors.Errorf("unsupported source url %q: expected github:owner/repo, a git URL or a local path", raw)
	}
	if u.Host == "" {
		return Location{}, errors.Errorf("invalid source url %q: missing host", raw)
	}

	ref := u.Fragment
	if ref == "" {
		u.Path, ref = splitRef(u.Path)
	}
	u.Fragment = ""
	u.RawQuery = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = trimRepoSuffix(u.Path)
	if u.Path == "" {
		return Location{}, errors.Errorf("invalid source url %q: missing repository path", raw)
	}

	return Location{URL: u.String(), Ref: ref}, nil
}

// NormalizeURL returns the canonical form of raw, or raw trimmed when it cannot be parsed
func NormalizeURL(raw string) string {
	loc, err := ParseLocation(raw, "")
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return loc.String()
}

// CacheKey derives the cache directory name of a remote location: a readable
// slug plus a short hash of the canonical URL
func CacheKey(loc Location) string {
	canonical := loc.String()
	sum := sha256.Sum256([]byte(canonical))

	slug := canonical
	if i := strings.Index(slug, "://"); i >= 0 {
		slug = slug[i+3:]
	}
	slug = strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(slug), "-"), "-.")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	if slug == "" {
		slug = "source"
	}

	return slug + "-" + hex.EncodeToString(sum[:])[:12]
}

func parseGitHubShorthand(shorthand string) (Location, error) {
	repo, ref := shorthand, ""
	if i := strings.LastIndex(shorthand, "@"); i >= 0 {
		repo, ref = shorthand[:i], shorthand[i+1:]
	}
	repo = trimRepoSuffix(repo)
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Location{}, errors.Errorf("invalid github source %q: expected owner/repo", shorthand)
	}
	return Location{
		URL: "https://github.com/" + strings.ToLower(parts[0]) + "/" + parts[1],
		Ref: ref,
	}, nil
}

// splitRef separates a trailing @ref from the last path segment
func splitRef(p string) (string, string) {
	if i := strings.LastIndex(p, "@"); i > strings.LastIndex(p, "/") {
		return p[:i], p[i+1:]
	}
	return p, ""
}

func trimRepoSuffix(p string) string {
	p = strings.TrimRight(p, "/")
	p = strings.TrimSuffix(p, ".git")
	return strings.TrimRight(p, "/")
}

func resolveLocalPath(raw, baseDir string) (string, error) {
	p := strings.TrimPrefix(raw, fileScheme)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get user home directory")
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	if !filepath.IsAbs(p) && baseDir != "" {
		p = filepath.Join(baseDir, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve local source path %q", raw)
	}
	return abs, nil
}
