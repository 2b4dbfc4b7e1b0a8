package git

import (
	"os"
)

// State is the derived "what is mid-flight in this repository" enum
// (§4.7 getRepositoryState), computed from marker-file presence alone —
// it never inspects the index, since index/dircache parsing is out of
// scope.
type State int

const (
	StateBare State = iota
	StateSafe
	StateMerging
	StateMergingResolved
	StateRebasingInteractive
	StateRebasingMerge
	StateRebasing
	StateApply
	StateBisecting
	StateCherryPicking
	StateCherryPickingResolved
	StateReverting
	StateRevertingResolved
)

func (s State) String() string {
	switch s {
	case StateBare:
		return "bare"
	case StateSafe:
		return "safe"
	case StateMerging:
		return "merging"
	case StateMergingResolved:
		return "merging-resolved"
	case StateRebasingInteractive:
		return "rebasing-interactive"
	case StateRebasingMerge:
		return "rebasing-merge"
	case StateRebasing:
		return "rebasing"
	case StateApply:
		return "apply"
	case StateBisecting:
		return "bisecting"
	case StateCherryPicking:
		return "cherry-picking"
	case StateCherryPickingResolved:
		return "cherry-picking-resolved"
	case StateReverting:
		return "reverting"
	case StateRevertingResolved:
		return "reverting-resolved"
	default:
		return "unknown"
	}
}

// GetRepositoryState inspects the git-dir marker files git itself
// leaves behind during a multi-step operation and reports which one (if
// any) is in progress.
//
// The *_RESOLVED variants would, in real git, depend on whether the
// index still records unmerged stages; since index parsing is out of
// scope here, Merging/CherryPicking/Reverting are reported as
// in-progress but never as resolved — a deliberate, documented
// simplification.
func (r *Repository) GetRepositoryState() (State, error) {
	if r.cfg.Core.IsBare {
		return StateBare, nil
	}

	fs, err := r.GitDir()
	if err != nil {
		return StateSafe, nil
	}

	if exists(fs, "rebase-merge") {
		if exists(fs, "rebase-merge/interactive") {
			return StateRebasingInteractive, nil
		}
		return StateRebasingMerge, nil
	}

	if exists(fs, "rebase-apply") {
		if exists(fs, "rebase-apply/rebasing") {
			return StateRebasing, nil
		}
		if exists(fs, "rebase-apply/applying") {
			return StateApply, nil
		}
		return StateRebasing, nil
	}

	if exists(fs, "BISECT_LOG") {
		return StateBisecting, nil
	}

	if exists(fs, cherryPickHeadFile) {
		return StateCherryPicking, nil
	}

	if exists(fs, revertHeadFile) {
		return StateReverting, nil
	}

	if exists(fs, mergeHeadFile) {
		return StateMerging, nil
	}

	return StateSafe, nil
}

func exists(fs interface {
	Stat(string) (os.FileInfo, error)
}, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}
