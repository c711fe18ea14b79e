package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command is a remote action received on the cloud command topic. The wire
// form is {"command":"pump_on","duration":"10"}; the server serialises the
// duration as a string, but a plain number is accepted too.
type Command struct {
	Command  string  `json:"command"`
	Duration Seconds `json:"duration"`
}

// Device returns the device a "<name>_on" command addresses.
func (c Command) Device() (Device, error) {
	name, ok := strings.CutSuffix(c.Command, "_on")
	if !ok {
		return "", fmt.Errorf("unknown command %q", c.Command)
	}
	return ParseDevice(name)
}

// Seconds is a duration carried on the wire as a number of seconds, either
// quoted or bare.
type Seconds time.Duration

func (s *Seconds) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %s: %w", string(b), err)
	}
	*s = Seconds(time.Duration(n) * time.Second)
	return nil
}

func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(time.Duration(s) / time.Second)))
}

func (s Seconds) Duration() time.Duration { return time.Duration(s) }
