package harness

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/object"
)

// Scenario defines a deterministic collision scenario: a set of objects
// with scheduled lifetimes, stepped for a fixed number of frames.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// RunID is an optional fixed run ID for deterministic stored runs.
	// If empty, a UUIDv7 is generated per run.
	RunID string `yaml:"run_id,omitempty"`

	// Frames is the number of frames to step. Frame numbers start at 1.
	Frames int `yaml:"frames"`

	// FrameMs is the simulated length of one frame in milliseconds.
	FrameMs int64 `yaml:"frame_ms"`

	// Workers is the worker pool size. 0 leaves the engine default.
	Workers int `yaml:"workers,omitempty"`

	// Capacity is the arena size. 0 means one slot per object.
	Capacity int `yaml:"capacity,omitempty"`

	Objects []ObjectSpec `yaml:"objects"`

	// Assertions validate the trace and final world state.
	// Supported types: collision_count, destroyed, alive, executed_once
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ObjectSpec describes one object and when it exists.
type ObjectSpec struct {
	Name    string     `yaml:"name"`
	Kind    string     `yaml:"kind"`
	Pos     mgl64.Vec3 `yaml:"pos"`
	Vel     mgl64.Vec3 `yaml:"vel,omitempty"`
	Forward mgl64.Vec3 `yaml:"forward,omitempty"`
	Radius  float64    `yaml:"radius"`
	Hull    float64    `yaml:"hull,omitempty"`
	Team    int        `yaml:"team,omitempty"`

	// Parent names an object listed earlier that created this one.
	Parent string `yaml:"parent,omitempty"`

	Player    bool `yaml:"player,omitempty"`
	Small     bool `yaml:"small,omitempty"`
	NoCollide bool `yaml:"no_collide,omitempty"`

	// SpawnFrame is the first frame the object exists in (0 means 1).
	SpawnFrame int `yaml:"spawn_frame,omitempty"`

	// KillFrame removes the object at the start of that frame (0 means never).
	KillFrame int `yaml:"kill_frame,omitempty"`

	Weapon *WeaponSpec `yaml:"weapon,omitempty"`
	Beam   *BeamSpec   `yaml:"beam,omitempty"`
}

// WeaponSpec carries weapon fields. Lifetime 0 means the weapon never expires.
type WeaponSpec struct {
	Damage     float64 `yaml:"damage"`
	HitPoints  float64 `yaml:"hit_points,omitempty"`
	Lifetime   float64 `yaml:"lifetime,omitempty"`
	ArmDelay   float64 `yaml:"arm_delay,omitempty"`
	Homing     bool    `yaml:"homing,omitempty"`
	Laser      bool    `yaml:"laser,omitempty"`
	Bomb       bool    `yaml:"bomb,omitempty"`
	HardTarget bool    `yaml:"hard_target,omitempty"`
}

// BeamSpec is a fixed beam segment.
type BeamSpec struct {
	Start  mgl64.Vec3 `yaml:"start"`
	End    mgl64.Vec3 `yaml:"end"`
	Width  float64    `yaml:"width"`
	Damage float64    `yaml:"damage"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "collision_count": exactly Count applied collisions of Pair
	// - "destroyed": Object was destroyed during the run
	// - "alive": Object is live after the last frame
	// - "executed_once": no pair executed twice in one frame
	Type string `yaml:"type"`

	// Pair is a pair-kind name such as "ship-weapon" (collision_count).
	Pair string `yaml:"pair,omitempty"`

	// Count is the expected number of collisions (collision_count).
	Count int `yaml:"count,omitempty"`

	// Object names a scenario object (destroyed, alive).
	Object string `yaml:"object,omitempty"`
}

// Assertion type constants.
const (
	AssertCollisionCount = "collision_count"
	AssertDestroyed      = "destroyed"
	AssertAlive          = "alive"
	AssertExecutedOnce   = "executed_once"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
// Object names are normalized to NFC so visually identical names compare equal.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	normalizeNames(&scenario)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func normalizeNames(s *Scenario) {
	for i := range s.Objects {
		s.Objects[i].Name = norm.NFC.String(s.Objects[i].Name)
		s.Objects[i].Parent = norm.NFC.String(s.Objects[i].Parent)
	}
	for i := range s.Assertions {
		s.Assertions[i].Object = norm.NFC.String(s.Assertions[i].Object)
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", s.Frames)
	}

	if s.FrameMs <= 0 {
		return fmt.Errorf("frame_ms must be positive, got %d", s.FrameMs)
	}

	if len(s.Objects) == 0 {
		return fmt.Errorf("objects list is required and must be non-empty")
	}

	if s.Capacity != 0 && s.Capacity < len(s.Objects) {
		return fmt.Errorf("capacity %d is smaller than the %d objects", s.Capacity, len(s.Objects))
	}

	seen := make(map[string]int, len(s.Objects))
	for i := range s.Objects {
		if err := validateObject(i, &s.Objects[i], seen); err != nil {
			return err
		}
		seen[s.Objects[i].Name] = i
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], seen); err != nil {
			return err
		}
	}

	return nil
}

func validateObject(index int, o *ObjectSpec, seen map[string]int) error {
	if o.Name == "" {
		return fmt.Errorf("objects[%d]: name is required", index)
	}
	if _, dup := seen[o.Name]; dup {
		return fmt.Errorf("objects[%d]: duplicate name %q", index, o.Name)
	}

	kind, err := object.ParseKind(o.Kind)
	if err != nil {
		return fmt.Errorf("objects[%d] %s: %w", index, o.Name, err)
	}

	if o.Radius < 0 {
		return fmt.Errorf("objects[%d] %s: radius must not be negative", index, o.Name)
	}

	if o.Parent != "" {
		if _, ok := seen[o.Parent]; !ok {
			return fmt.Errorf("objects[%d] %s: parent %q must be listed earlier", index, o.Name, o.Parent)
		}
	}

	if o.KillFrame != 0 && o.KillFrame <= spawnFrame(o) {
		return fmt.Errorf("objects[%d] %s: kill_frame %d must be after spawn_frame %d",
			index, o.Name, o.KillFrame, spawnFrame(o))
	}

	switch kind {
	case object.KindWeapon:
		if o.Weapon == nil {
			return fmt.Errorf("objects[%d] %s: weapon block is required for kind weapon", index, o.Name)
		}
	case object.KindBeam:
		if o.Beam == nil {
			return fmt.Errorf("objects[%d] %s: beam block is required for kind beam", index, o.Name)
		}
	}
	if o.Weapon != nil && kind != object.KindWeapon {
		return fmt.Errorf("objects[%d] %s: weapon block on kind %s", index, o.Name, kind)
	}
	if o.Beam != nil && kind != object.KindBeam {
		return fmt.Errorf("objects[%d] %s: beam block on kind %s", index, o.Name, kind)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, objects map[string]int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCollisionCount:
		if a.Pair == "" {
			return fmt.Errorf("assertions[%d]: pair is required for collision_count", index)
		}
		if _, err := classify.ParsePairKind(a.Pair); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for collision_count", index)
		}
	case AssertDestroyed, AssertAlive:
		if a.Object == "" {
			return fmt.Errorf("assertions[%d]: object is required for %s", index, a.Type)
		}
		if _, ok := objects[a.Object]; !ok {
			return fmt.Errorf("assertions[%d]: unknown object %q", index, a.Object)
		}
	case AssertExecutedOnce:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func spawnFrame(o *ObjectSpec) int {
	if o.SpawnFrame < 1 {
		return 1
	}
	return o.SpawnFrame
}
