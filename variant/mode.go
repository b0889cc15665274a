package variant

import (
	"fmt"
	"strings"
)

// Mode selects the behaviour of the whole application for the lifetime of
// the process.
type Mode int

const (
	Good Mode = iota
	Bad
)

func (m Mode) String() string {
	switch m {
	case Good:
		return "good"
	case Bad:
		return "bad"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "good":
		return Good, nil
	case "bad":
		return Bad, nil
	}
	return Good, fmt.Errorf("unknown variant %q (want good or bad)", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
