// Package domain defines the core types and interfaces of the Nayru voice
// engine. All other packages depend on domain; domain depends on nothing.
package domain

import "fmt"

// State represents the transport state of the Control block.
type State int

const (
	Idle State = iota
	Converting
	Playing
	Paused
)

// String returns the lower-case wire/log representation of a State.
func (s State) String() string {
	switch s {
	case Converting:
		return "converting"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// MarshalJSON encodes a State as its lower-case string form, which is what
// the HTTP/CLI wire contract carries.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes the string form back into a State.
func (s *State) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"idle"`:
		*s = Idle
	case `"converting"`:
		*s = Converting
	case `"playing"`:
		*s = Playing
	case `"paused"`:
		*s = Paused
	default:
		return fmt.Errorf("unknown state %s", data)
	}
	return nil
}
