package workflow

import "fmt"

// State is the single explicit workflow state.
type State int

const (
	Idle State = iota
	AwaitingAvatar
	Ready
	Generating
	Generated
	GenerationFailed
	ArtifactTooLarge
)

var stateNames = [...]string{
	Idle:             "idle",
	AwaitingAvatar:   "awaiting_avatar",
	Ready:            "ready",
	Generating:       "generating",
	Generated:        "generated",
	GenerationFailed: "generation_failed",
	ArtifactTooLarge: "artifact_too_large",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("workflow: unknown state %q", text)
}

// canGenerate lists the states from which an explicit generate action is accepted.
func (s State) canGenerate() bool {
	switch s {
	case Ready, Generating, Generated, GenerationFailed, ArtifactTooLarge:
		return true
	}
	return false
}

// AvatarStatus distinguishes "nothing selected" from "still loading".
type AvatarStatus string

const (
	AvatarNone    AvatarStatus = "none"
	AvatarLoading AvatarStatus = "loading"
	AvatarReady   AvatarStatus = "ready"
)

// Selection records which catalog entries are highlighted. Empty means none.
type Selection struct {
	PresetID     string `json:"presetId,omitempty"`
	DecorationID string `json:"decorationId,omitempty"`
}
