// Package filemode defines the entry mode bits used in Git tree objects.
package filemode

import (
	"fmt"
	"os"
	"strconv"
)

// FileMode is the Unix-style mode of a single tree entry, as stored in
// the octal ASCII prefix of a tree object's entry line.
type FileMode uint32

const (
	Empty      FileMode = 0
	Dir        FileMode = 0o040000
	Regular    FileMode = 0o100644
	Deprecated FileMode = 0o100664
	Executable FileMode = 0o100755
	Symlink    FileMode = 0o120000
	Submodule  FileMode = 0o160000
)

// New parses the octal string representation found in a tree entry.
func New(s string) (FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return Empty, fmt.Errorf("malformed file mode %q: %w", s, err)
	}
	return FileMode(n), nil
}

// String renders the mode back to its octal tree-entry form.
func (m FileMode) String() string {
	return strconv.FormatUint(uint64(m), 8)
}

func (m FileMode) IsDir() bool       { return m == Dir }
func (m FileMode) IsRegular() bool   { return m == Regular || m == Deprecated }
func (m FileMode) IsSymlink() bool   { return m == Symlink }
func (m FileMode) IsSubmodule() bool { return m == Submodule }

// IsMalformed reports whether m isn't one of the recognised tree modes.
func (m FileMode) IsMalformed() bool {
	switch m {
	case Empty, Dir, Regular, Deprecated, Executable, Symlink, Submodule:
		return false
	default:
		return true
	}
}

// ToOSFileMode converts a tree mode to the nearest os.FileMode, for
// callers that stage working-tree files (an external collaborator).
func (m FileMode) ToOSFileMode() (os.FileMode, error) {
	switch m {
	case Dir:
		return os.ModeDir | 0o755, nil
	case Symlink:
		return os.ModeSymlink, nil
	case Executable:
		return 0o755, nil
	case Regular, Deprecated:
		return 0o644, nil
	case Submodule:
		return os.ModeDir | os.ModeSymlink, nil
	default:
		return 0, fmt.Errorf("malformed file mode %o", uint32(m))
	}
}
