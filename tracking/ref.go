package tracking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const aliasLatest = "latest"

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)
	versionPattern = regexp.MustCompile(`^v([0-9]+)$`)
)

// Ref names an artifact as [entity/][project/]name[:version]. Version is vN, an alias, or empty for latest.
type Ref struct {
	Project string
	Name    string
	Version string
}

// ParseRef parses s, filling Project with defaultProject when s does not name one.
func ParseRef(s, defaultProject string) (Ref, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Ref{}, fmt.Errorf("%w: empty reference", ErrInvalidRef)
	}

	ref := Ref{Project: defaultProject}
	path := raw
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		path, ref.Version = raw[:i], raw[i+1:]
		if ref.Version == "" || !namePattern.MatchString(ref.Version) {
			return Ref{}, fmt.Errorf("%w: bad version in %q", ErrInvalidRef, s)
		}
	}

	parts := strings.Split(path, "/")
	switch len(parts) {
	case 1:
		ref.Name = parts[0]
	case 2:
		ref.Project, ref.Name = parts[0], parts[1]
	case 3:
		// the entity is accepted for compatibility and ignored by a local store
		ref.Project, ref.Name = parts[1], parts[2]
	default:
		return Ref{}, fmt.Errorf("%w: too many path segments in %q", ErrInvalidRef, s)
	}
	if !namePattern.MatchString(ref.Name) {
		return Ref{}, fmt.Errorf("%w: bad artifact name in %q", ErrInvalidRef, s)
	}
	if !namePattern.MatchString(ref.Project) {
		return Ref{}, fmt.Errorf("%w: bad project in %q", ErrInvalidRef, s)
	}
	if ref.Version == "" {
		ref.Version = aliasLatest
	}
	return ref, nil
}

// Pinned reports the version number when the reference names an exact vN version.
func (r Ref) Pinned() (int, bool) {
	m := versionPattern.FindStringSubmatch(r.Version)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s:%s", r.Project, r.Name, r.Version)
}

func isVersionLike(alias string) bool {
	return versionPattern.MatchString(alias)
}
