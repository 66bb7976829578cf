package marker

import (
	"encoding/json"
	"fmt"
)

type DetectorStatus int

const (
	DetectorStatusIdle DetectorStatus = iota
	DetectorStatusStarting
	DetectorStatusReady
	DetectorStatusFailed
)

func (s DetectorStatus) String() string {
	switch s {
	case DetectorStatusIdle:
		return "idle"
	case DetectorStatusStarting:
		return "starting"
	case DetectorStatusReady:
		return "ready"
	case DetectorStatusFailed:
		return "failed"
	}
	return fmt.Sprintf("DetectorStatus(%d)", int(s))
}

func (s DetectorStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
