package voice

import (
	"strconv"
	"strings"
)

// Mode selects the engine pathway. Numeric values match the CLI selector.
type Mode int

const (
	ModeZeroShot     Mode = 1
	ModeInstruction  Mode = 2
	ModeCrossLingual Mode = 3
)

// Modes lists every supported mode in selector order.
func Modes() []Mode {
	return []Mode{ModeZeroShot, ModeInstruction, ModeCrossLingual}
}

func (m Mode) Valid() bool {
	switch m {
	case ModeZeroShot, ModeInstruction, ModeCrossLingual:
		return true
	}
	return false
}

func (m Mode) String() string {
	switch m {
	case ModeZeroShot:
		return "zero_shot"
	case ModeInstruction:
		return "instruct"
	case ModeCrossLingual:
		return "cross_lingual"
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// DefaultBaseName is the output file prefix used when the caller gives none.
func (m Mode) DefaultBaseName() string {
	switch m {
	case ModeZeroShot:
		return "zero_shot"
	case ModeInstruction:
		return "instruct"
	case ModeCrossLingual:
		return "fine_grained_control"
	}
	return "synthesis"
}

// ParseMode accepts the numeric selector or a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "zero_shot", "zero-shot", "zeroshot":
		return ModeZeroShot, nil
	case "2", "instruct", "instruction":
		return ModeInstruction, nil
	case "3", "cross_lingual", "cross-lingual", "crosslingual", "fine_grained", "fine-grained":
		return ModeCrossLingual, nil
	}
	return 0, &UnknownModeError{Input: s}
}
