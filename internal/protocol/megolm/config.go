package megolm

import (
	"encoding/json"
	"fmt"
)

// SessionConfig selects the Megolm protocol variant of a session.
type SessionConfig struct {
	version int
}

// ConfigV1 is m.megolm.v1.aes-sha2: messages carry a truncated 8-byte MAC.
func ConfigV1() SessionConfig { return SessionConfig{version: 1} }

// ConfigV2 is m.megolm.v2.aes-sha2: messages carry the full 32-byte MAC.
func ConfigV2() SessionConfig { return SessionConfig{version: 2} }

// Version reports 1 or 2.
func (c SessionConfig) Version() int {
	if c.version == 0 {
		return 1
	}
	return c.version
}

// MACLength is the number of MAC bytes appended to each message.
func (c SessionConfig) MACLength() int {
	if c.Version() == 2 {
		return 32
	}
	return 8
}

type pickledConfig struct {
	Version string `json:"version"`
}

func (c SessionConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(pickledConfig{Version: fmt.Sprintf("V%d", c.Version())})
}

func (c *SessionConfig) UnmarshalJSON(b []byte) error {
	var p pickledConfig
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	switch p.Version {
	case "V1":
		*c = ConfigV1()
	case "V2":
		*c = ConfigV2()
	default:
		return fmt.Errorf("%w: %q", ErrBadConfig, p.Version)
	}
	return nil
}
