package domain

import "fmt"

// DisplayMode selects between the single-portfolio view and the side-by-side
// comparison view.
type DisplayMode string

const (
	ModeSingle  DisplayMode = "single"
	ModeCompare DisplayMode = "compare"
)

// ShareableState is the only value that crosses the share-link serialization
// boundary. It carries inputs exclusively; results are always recomputed by
// re-running the configs, never embedded in a link.
//
// In single mode Config is set; in compare mode ConfigA and ConfigB are set.
type ShareableState struct {
	Mode    DisplayMode     `json:"mode"`
	Config  *BacktestConfig `json:"config,omitempty"`
	ConfigA *BacktestConfig `json:"configA,omitempty"`
	ConfigB *BacktestConfig `json:"configB,omitempty"`
}

// SingleState builds a single-mode shareable state.
func SingleState(cfg BacktestConfig) *ShareableState {
	return &ShareableState{Mode: ModeSingle, Config: &cfg}
}

// CompareState builds a compare-mode shareable state.
func CompareState(a, b BacktestConfig) *ShareableState {
	return &ShareableState{Mode: ModeCompare, ConfigA: &a, ConfigB: &b}
}

// Validate checks that the state is one of the two recognised shapes:
// mode "single" with a config, or mode "compare" with both configs.
func (s *ShareableState) Validate() error {
	switch s.Mode {
	case ModeSingle:
		if s.Config == nil {
			return fmt.Errorf("single state missing config")
		}
	case ModeCompare:
		if s.ConfigA == nil || s.ConfigB == nil {
			return fmt.Errorf("compare state missing configA or configB")
		}
	default:
		return fmt.Errorf("unrecognised mode %q", s.Mode)
	}
	return nil
}

// Sanitized returns a copy of the state with every embedded config passed
// through Sanitize.
func (s *ShareableState) Sanitized() *ShareableState {
	out := &ShareableState{Mode: s.Mode}
	if s.Config != nil {
		c := Sanitize(*s.Config)
		out.Config = &c
	}
	if s.ConfigA != nil {
		a := Sanitize(*s.ConfigA)
		out.ConfigA = &a
	}
	if s.ConfigB != nil {
		b := Sanitize(*s.ConfigB)
		out.ConfigB = &b
	}
	return out
}
