package command

import "fmt"

type Kind string

const (
	KindTakeoff    Kind = "takeoff"
	KindLand       Kind = "land"
	KindMove       Kind = "move"
	KindStartVideo Kind = "startVideo"
	KindStopVideo  Kind = "stopVideo"
)

type Direction string

const (
	DirForward          Direction = "forward"
	DirBack             Direction = "back"
	DirLeft             Direction = "left"
	DirRight            Direction = "right"
	DirUp               Direction = "up"
	DirDown             Direction = "down"
	DirClockwise        Direction = "clockwise"
	DirCounterClockwise Direction = "counterClockwise"
)

// DefaultMoveDistance is applied when the surface omits a distance.
const DefaultMoveDistance = 30

// ValidationError describes a command constructed with an invalid value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Command is one user intent. Commands are constructed fresh per action and
// validated at construction; Dispatch performs no further validation.
type Command struct {
	Kind      Kind
	Direction Direction
	Distance  int
}

// New builds a non-movement command.
func New(kind Kind) (Command, error) {
	switch kind {
	case KindTakeoff, KindLand, KindStartVideo, KindStopVideo:
		return Command{Kind: kind}, nil
	case KindMove:
		return Command{}, &ValidationError{Field: "kind", Reason: "move requires a direction, use NewMove"}
	default:
		return Command{}, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unrecognized kind %q", kind)}
	}
}

// NewMove builds a movement command. A zero distance takes the default of
// 30 cm; a negative distance is rejected.
func NewMove(dir Direction, distance int) (Command, error) {
	switch dir {
	case DirForward, DirBack, DirLeft, DirRight, DirUp, DirDown, DirClockwise, DirCounterClockwise:
	default:
		return Command{}, &ValidationError{Field: "direction", Reason: fmt.Sprintf("unrecognized direction %q", dir)}
	}
	if distance < 0 {
		return Command{}, &ValidationError{Field: "distance", Reason: "must be positive"}
	}
	if distance == 0 {
		distance = DefaultMoveDistance
	}
	return Command{Kind: KindMove, Direction: dir, Distance: distance}, nil
}

var moveTokens = map[Direction]string{
	DirForward:          "move_forward",
	DirBack:             "move_back",
	DirLeft:             "move_left",
	DirRight:            "move_right",
	DirUp:               "move_up",
	DirDown:             "move_down",
	DirClockwise:        "rotate_clockwise",
	DirCounterClockwise: "rotate_counter_clockwise",
}

// Token returns the wire token the drone service recognizes.
func (c Command) Token() string {
	if c.Kind == KindMove {
		return moveTokens[c.Direction]
	}
	return string(c.Kind)
}

// String renders the command for log entries.
func (c Command) String() string {
	if c.Kind == KindMove {
		return fmt.Sprintf("%s %dcm", c.Token(), c.Distance)
	}
	return c.Token()
}
