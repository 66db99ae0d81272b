package coalesce

import "fmt"

// Policy selects which value a gate delivers when it opens.
type Policy int

const (
	// ReplayLastUndelivered delivers, on open, the most recent value that
	// arrived while the gate was closed, if any.
	ReplayLastUndelivered Policy = iota

	// ReplayLast delivers, on open, the most recent value the gate has seen,
	// even if it was already delivered before the gate closed.
	ReplayLast
)

var policyName = [...]string{
	ReplayLastUndelivered: "replayLastUndelivered",
	ReplayLast:            "replayLast",
}

func (p Policy) String() string {
	if p >= 0 && int(p) < len(policyName) {
		return policyName[p]
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// MarshalText implements [encoding.TextMarshaler].
func (p Policy) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(policyName) {
		return nil, fmt.Errorf("invalid policy %d", int(p))
	}
	return []byte(policyName[p]), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (p *Policy) UnmarshalText(text []byte) error {
	for i, name := range policyName {
		if string(text) == name {
			*p = Policy(i)
			return nil
		}
	}
	return fmt.Errorf("unknown policy %q", text)
}
