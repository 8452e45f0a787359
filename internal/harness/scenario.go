package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a reorder scenario: seeded groups, a sequence of steps run
// against a real store, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// BatchThreshold overrides the coordinator's batch threshold.
	BatchThreshold *int `yaml:"batch_threshold,omitempty"`

	// OffsetMargin overrides the staging margin.
	OffsetMargin *int `yaml:"offset_margin,omitempty"`

	// Groups are seeded in order; items get positions 1..N.
	Groups []Group `yaml:"groups"`

	// Steps run in order. Each step holds exactly one action.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Group is a seeded group.
type Group struct {
	ID    string   `yaml:"id"`
	Items []string `yaml:"items"`
}

// Step is one scenario action.
type Step struct {
	Reorder   *ReorderStep   `yaml:"reorder,omitempty"`
	Permute   *PermuteStep   `yaml:"permute,omitempty"`
	Compact   *GroupStep     `yaml:"compact,omitempty"`
	Delete    *DeleteStep    `yaml:"delete,omitempty"`
	Resync    *GroupStep     `yaml:"resync,omitempty"`
	FailWrite *FailWriteStep `yaml:"fail_write,omitempty"`

	// Expect is the outcome kind a reorder, permute or compact must settle
	// with. Empty means success.
	Expect string `yaml:"expect,omitempty"`
}

// ReorderStep moves the item at From to To (zero-based).
type ReorderStep struct {
	Group string `yaml:"group"`
	From  int    `yaml:"from"`
	To    int    `yaml:"to"`
}

// PermuteStep reorders a group into Order.
type PermuteStep struct {
	Group string   `yaml:"group"`
	Order []string `yaml:"order"`
}

// GroupStep names the group of a compact or resync step.
type GroupStep struct {
	Group string `yaml:"group"`
}

// DeleteStep removes an item directly from the store, leaving a gap.
type DeleteStep struct {
	Item string `yaml:"item"`
}

// FailWriteStep makes the Nth position write from now fail.
type FailWriteStep struct {
	Nth int `yaml:"nth"`
}

// Action returns the name of the step's action, or "" if none is set.
func (s Step) Action() string {
	names := s.actions()
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

func (s Step) actions() []string {
	var names []string
	if s.Reorder != nil {
		names = append(names, "reorder")
	}
	if s.Permute != nil {
		names = append(names, "permute")
	}
	if s.Compact != nil {
		names = append(names, "compact")
	}
	if s.Delete != nil {
		names = append(names, "delete")
	}
	if s.Resync != nil {
		names = append(names, "resync")
	}
	if s.FailWrite != nil {
		names = append(names, "fail_write")
	}
	return names
}

// Assertion types.
const (
	AssertFinalOrder  = "final_order"
	AssertDense       = "dense"
	AssertWriteCount  = "write_count"
	AssertNeedsResync = "needs_resync"
)

// Assertion defines a check on the state after the last step.
type Assertion struct {
	// Type is one of final_order, dense, write_count, needs_resync.
	Type string `yaml:"type"`

	// Group is the group checked by final_order, dense and needs_resync.
	Group string `yaml:"group,omitempty"`

	// Items is the expected order for final_order.
	Items []string `yaml:"items,omitempty"`

	// Count is the expected number of successful writes for write_count.
	Count int `yaml:"count,omitempty"`

	// Want is the expected flag for needs_resync.
	Want bool `yaml:"want,omitempty"`
}

// LoadScenario loads a scenario from a YAML file.
//
// The document is checked against the embedded CUE schema, decoded with
// unknown fields rejected, then validated for references between groups,
// steps and assertions.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return sc, nil
}

// ParseScenario parses and validates a YAML scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}
	if err := ValidateSchema(doc); err != nil {
		return nil, err
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// FindScenarioFiles returns the .yaml and .yml files directly under dir,
// sorted by name.
func FindScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenarios dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks what the schema cannot: uniqueness of IDs and that
// steps and assertions name seeded groups.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Groups) == 0 {
		return fmt.Errorf("at least one group is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	groups := make(map[string]bool, len(s.Groups))
	items := make(map[string]string)
	for i, g := range s.Groups {
		if g.ID == "" {
			return fmt.Errorf("groups[%d]: id is required", i)
		}
		if groups[g.ID] {
			return fmt.Errorf("groups[%d]: duplicate group %q", i, g.ID)
		}
		groups[g.ID] = true
		for _, id := range g.Items {
			if owner, ok := items[id]; ok {
				return fmt.Errorf("groups[%d]: item %q already seeded in group %q", i, id, owner)
			}
			items[id] = g.ID
		}
	}

	checkGroup := func(where, id string) error {
		if !groups[id] {
			return fmt.Errorf("%s: unknown group %q", where, id)
		}
		return nil
	}

	for i, step := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		if n := len(step.actions()); n != 1 {
			return fmt.Errorf("%s: expected exactly one action, got %d", where, n)
		}
		var err error
		switch {
		case step.Reorder != nil:
			err = checkGroup(where, step.Reorder.Group)
		case step.Permute != nil:
			err = checkGroup(where, step.Permute.Group)
		case step.Compact != nil:
			err = checkGroup(where, step.Compact.Group)
		case step.Resync != nil:
			err = checkGroup(where, step.Resync.Group)
		case step.Delete != nil:
			if _, ok := items[step.Delete.Item]; !ok {
				err = fmt.Errorf("%s: unknown item %q", where, step.Delete.Item)
			}
		case step.FailWrite != nil:
			if step.FailWrite.Nth < 1 {
				err = fmt.Errorf("%s: fail_write nth must be >= 1", where)
			}
		}
		if err != nil {
			return err
		}
		if step.Expect != "" && (step.Delete != nil || step.Resync != nil || step.FailWrite != nil) {
			return fmt.Errorf("%s: expect is only valid on reorder, permute and compact", where)
		}
	}

	for i, a := range s.Assertions {
		where := fmt.Sprintf("assertions[%d]", i)
		switch a.Type {
		case AssertFinalOrder, AssertDense, AssertNeedsResync:
			if err := checkGroup(where, a.Group); err != nil {
				return err
			}
		case AssertWriteCount:
			if a.Count < 0 {
				return fmt.Errorf("%s: count must be >= 0", where)
			}
		default:
			return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
		}
	}
	return nil
}
