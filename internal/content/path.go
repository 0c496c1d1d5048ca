package content

import (
	"net/url"
	"strings"

	"github.com/nibzard/agrama/internal/agramaerr"
)

// Path is a validated identifier for versioned content. Construct one with
// ValidatePath; the zero value is never valid.
type Path string

// ValidatePath enforces the path-safety rules consumed by the primitive
// layer (store/retrieve) and used directly by any other caller of the
// content store: non-empty, no absolute prefix, no parent-directory
// traversal (literal or percent-encoded), no null byte, and no escape of
// root after normalization. Both '/' and '\' are accepted as separators
// and backslashes are normalized to '/'; no separator character is
// rejected. When a
// root is configured, a single explicit leading root segment is stripped so
// stored paths are always root-relative.
func ValidatePath(root, raw string) (Path, error) {
	const op = "content.ValidatePath"
	if raw == "" {
		return "", agramaerr.New(agramaerr.Validation, op, "path must not be empty")
	}
	if strings.ContainsRune(raw, 0) {
		return "", agramaerr.New(agramaerr.Validation, op, "path contains a null byte")
	}
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "\\") || hasWindowsDriveLetter(raw) {
		return "", agramaerr.New(agramaerr.Validation, op, "path must not be absolute")
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", agramaerr.Wrap(agramaerr.Validation, op, "path is not valid percent-encoding", err)
	}

	for _, candidate := range []string{raw, decoded} {
		for _, seg := range splitSegments(candidate) {
			if seg == ".." || isDotDotNormalizationVariant(seg) {
				return "", agramaerr.New(agramaerr.Validation, op, "path contains a parent-directory traversal segment")
			}
		}
	}

	normalized := normalize(decoded)
	if normalized == "" {
		return "", agramaerr.New(agramaerr.Validation, op, "path normalizes to empty")
	}
	if escapesRoot(normalized) {
		return "", agramaerr.New(agramaerr.Validation, op, "path escapes the configured root")
	}

	// Paths are stored relative to the configured root; one explicit
	// leading root segment is stripped so "root/a.txt" and "a.txt" name
	// the same content. The bare root is not a content path.
	if root != "" {
		r := normalize(root)
		if normalized == r {
			return "", agramaerr.New(agramaerr.Validation, op, "path names the root itself")
		}
		normalized = strings.TrimPrefix(normalized, r+"/")
	}

	return Path(normalized), nil
}

func hasWindowsDriveLetter(s string) bool {
	return len(s) >= 2 && s[1] == ':' && ((s[0] >= 'a' && s[0] <= 'z') || (s[0] >= 'A' && s[0] <= 'Z'))
}

func splitSegments(s string) []string {
	s = strings.ReplaceAll(s, "\\", "/")
	return strings.Split(s, "/")
}

// isDotDotNormalizationVariant catches Unicode confusables/normalization
// variants of ".." such as full-width periods, which must be rejected even
// though they are not byte-identical to "..".
func isDotDotNormalizationVariant(seg string) bool {
	if seg == ".." {
		return true
	}
	folded := strings.Map(func(r rune) rune {
		switch r {
		case '．': // fullwidth full stop
			return '.'
		case '․': // one dot leader
			return '.'
		default:
			return r
		}
	}, seg)
	return folded == ".." && folded != seg
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")
	parts := strings.Split(s, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		default:
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

func escapesRoot(normalized string) bool {
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// String returns the path's string form.
func (p Path) String() string { return string(p) }
