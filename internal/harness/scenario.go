package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tapline/internal/event"
)

// DefaultProcess is used by steps that name no process.
const DefaultProcess = "Terminal"

// Scenario is a scripted capture run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps are delivered to the pipeline in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final stats and stored rows.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one capture callback. Exactly one of Key, Click, Scroll, Motion
// and Raw must be set.
type Step struct {
	// Took is the delay between the callback starting and its delivery.
	Took time.Duration `yaml:"took,omitempty"`

	Key    *KeyStep    `yaml:"key,omitempty"`
	Click  *ClickStep  `yaml:"click,omitempty"`
	Scroll *ScrollStep `yaml:"scroll,omitempty"`
	Motion *MotionStep `yaml:"motion,omitempty"`
	Raw    *RawStep    `yaml:"raw,omitempty"`
}

// KeyStep is a keyboard record.
type KeyStep struct {
	Type    string `yaml:"type,omitempty"` // default KeyDown
	Code    uint16 `yaml:"code,omitempty"`
	Char    string `yaml:"char"`
	Process string `yaml:"process,omitempty"`
}

// ClickStep is a mouse button record.
type ClickStep struct {
	Type      string  `yaml:"type,omitempty"` // default LeftMouseUp
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	DraggedPX float64 `yaml:"dragged_px,omitempty"`
	Process   string  `yaml:"process,omitempty"`
}

// ScrollStep is a scroll wheel record.
type ScrollStep struct {
	DX      int32  `yaml:"dx,omitempty"`
	DY      int32  `yaml:"dy,omitempty"`
	Process string `yaml:"process,omitempty"`
}

// MotionStep is a motion batch. An empty Samples list is delivered as an
// empty batch.
type MotionStep struct {
	Process string         `yaml:"process,omitempty"`
	Samples []MotionSample `yaml:"samples"`
}

// MotionSample is one pointer motion sample.
type MotionSample struct {
	PX    float64 `yaml:"px"`
	Angle float64 `yaml:"angle"`
	KPH   float64 `yaml:"kph"`
}

// RawStep is a record with an arbitrary type code, for out-of-band and
// malformed input.
type RawStep struct {
	Code    uint32 `yaml:"code"`
	Process string `yaml:"process,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type is one of stats, row_count or process_events.
	Type string `yaml:"type"`

	// Stats lists expected pipeline counters (stats).
	Stats *StatsExpect `yaml:"stats,omitempty"`

	// Category restricts row_count to one category; empty counts all rows.
	Category string `yaml:"category,omitempty"`

	// Process names the process for process_events.
	Process string `yaml:"process,omitempty"`

	// Count is the expected number of rows (row_count, process_events).
	Count int64 `yaml:"count"`
}

// StatsExpect holds expected pipeline counters. Nil fields are not checked.
type StatsExpect struct {
	Received    *uint64           `yaml:"received,omitempty"`
	Recorded    *uint64           `yaml:"recorded,omitempty"`
	TapDisabled *uint64           `yaml:"tap_disabled,omitempty"`
	Dropped     map[string]uint64 `yaml:"dropped,omitempty"`
}

// Assertion type constants.
const (
	AssertStats         = "stats"
	AssertRowCount      = "row_count"
	AssertProcessEvents = "process_events"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos do not silently skip checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	set := 0
	for _, present := range []bool{step.Key != nil, step.Click != nil, step.Scroll != nil, step.Motion != nil, step.Raw != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of key, click, scroll, motion or raw is required (got %d)", set)
	}
	if step.Key != nil && step.Key.Type != "" {
		if _, err := event.ParseTypeName(step.Key.Type); err != nil {
			return err
		}
	}
	if step.Click != nil && step.Click.Type != "" {
		if _, err := event.ParseTypeName(step.Click.Type); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertStats:
		if a.Stats == nil {
			return errors.New("stats is required for stats")
		}
	case AssertRowCount:
		if a.Count < 0 {
			return errors.New("count must be non-negative")
		}
	case AssertProcessEvents:
		if a.Process == "" {
			return errors.New("process is required for process_events")
		}
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
