package domain

import "strings"

type Stage string

const (
	StagePending   Stage = "pending"
	StageSubmitted Stage = "submitted"
	StageVoting    Stage = "voting"
	StageEnded     Stage = "ended"
	StageAnnounced Stage = "announced"
)

var forwardStage = map[Stage]Stage{
	StagePending:   StageSubmitted,
	StageSubmitted: StageVoting,
	StageVoting:    StageEnded,
	StageEnded:     StageAnnounced,
}

func ParseStage(raw string) (Stage, bool) {
	s := Stage(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StagePending, StageSubmitted, StageVoting, StageEnded, StageAnnounced:
		return s, true
	default:
		return "", false
	}
}

// CanTransition reports whether an agenda may move from one stage to another.
// Stages advance one step at a time; ended and announced agendas may be
// reopened for voting.
func CanTransition(from, to Stage) bool {
	if next, ok := forwardStage[from]; ok && next == to {
		return true
	}
	return to == StageVoting && (from == StageEnded || from == StageAnnounced)
}

func (s Stage) AcceptsVotes() bool { return s == StageVoting }
