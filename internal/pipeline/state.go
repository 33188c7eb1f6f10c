package pipeline

import (
	"fmt"
	"strings"
)

// StageID identifies a stage. StageResolution is not a stage but the step
// that builds the facade set before the first stage runs.
type StageID string

const (
	StageResolution StageID = "resolution"
	StageType       StageID = "type"
	StageOracle     StageID = "oracle"
	StageProduct    StageID = "product"
)

// ParseStageID accepts the id of one of the fixed stages.
func ParseStageID(s string) (StageID, error) {
	switch id := StageID(strings.ToLower(strings.TrimSpace(s))); id {
	case StageType, StageOracle, StageProduct:
		return id, nil
	}
	return "", fmt.Errorf("unknown stage %q: must be one of %q, %q, %q", s, StageType, StageOracle, StageProduct)
}

// State is the progress of a run.
type State int

const (
	NotStarted State = iota
	TypeRegistered
	OracleRegistered
	ProductRegistered
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case TypeRegistered:
		return "TypeRegistered"
	case OracleRegistered:
		return "OracleRegistered"
	case ProductRegistered:
		return "ProductRegistered"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further stage can run from s.
func (s State) Terminal() bool {
	return s == ProductRegistered || s == Failed
}
