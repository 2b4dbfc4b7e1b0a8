package plumbing

import "strings"

// IsValidReferenceName implements the ref-name validator shared by the
// reference database and the revision resolver (§4.7). It is total: it
// never panics and always returns a definite answer.
func IsValidReferenceName(name string) bool {
	if name == "" {
		return false
	}
	if name == "HEAD" {
		return true
	}

	if strings.HasSuffix(name, ".lock") {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if strings.Contains(name, "@{") {
		return false
	}

	components := strings.Split(name, "/")
	if len(components) < 2 {
		return false
	}

	for _, c := range components {
		if c == "" {
			return false
		}
		if strings.HasPrefix(c, ".") || strings.HasSuffix(c, ".") {
			return false
		}
		for _, r := range c {
			if r <= 0x20 || r == 0x7F {
				return false
			}
			switch r {
			case '\\', '~', '^', ':', '?', '*', '[':
				return false
			}
		}
	}

	return true
}
