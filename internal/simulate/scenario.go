// Package simulate is a scripted stand-in for the multi-agent backend. A
// scenario lists the frames one task produces; the runner plays them in
// order with a delay between frames and stops as soon as its context is
// cancelled.
package simulate

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/wire"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/fsutil"
)

//go:embed scenarios/*.yaml
var scenariosFS embed.FS

// DefaultScenario is played when no scenario is configured.
const DefaultScenario = "search"

// Step kinds.
const (
	StepDecision = "decision"
	StepThinking = "thinking"
	StepTool     = "tool"
	StepResult   = "result"
)

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML accepts "300ms"-style strings.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Scenario is a scripted task run.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	StepDelay   Duration `yaml:"step_delay,omitempty"`
	// Outcome is success or failed.
	Outcome string `yaml:"outcome"`
	Steps   []Step `yaml:"steps"`
}

// Step is one frame of a scenario. Text fields may contain {{text}} and
// {{task_id}}, replaced with the request text and task id.
type Step struct {
	Kind        string         `yaml:"kind"`
	AgentID     string         `yaml:"agent_id"`
	AgentName   string         `yaml:"agent_name,omitempty"`
	AgentAvatar string         `yaml:"agent_avatar,omitempty"`
	SubTask     string         `yaml:"sub_task,omitempty"`
	Thought     string         `yaml:"thought,omitempty"`
	ToolID      string         `yaml:"tool_id,omitempty"`
	ToolName    string         `yaml:"tool_name,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty"`
	Status      string         `yaml:"status,omitempty"`
	Result      any            `yaml:"result,omitempty"`
	Text        string         `yaml:"text,omitempty"`
	// Delay overrides the scenario step delay before this step.
	Delay *Duration `yaml:"delay,omitempty"`
}

// Validate checks the scenario is playable: every agent acts only after its
// decision step and every tool step names a tool.
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid("name is required")
	}
	switch s.Outcome {
	case wire.StatusSuccess, wire.StatusFailed:
	default:
		return invalid(fmt.Sprintf("scenario %s: outcome must be success or failed, got %q", s.Name, s.Outcome))
	}
	if s.StepDelay < 0 {
		return invalid(fmt.Sprintf("scenario %s: step_delay must not be negative", s.Name))
	}
	agents := make(map[string]bool)
	for i, step := range s.Steps {
		if step.AgentID == "" {
			return invalid(fmt.Sprintf("scenario %s: step %d: agent_id is required", s.Name, i+1))
		}
		switch step.Kind {
		case StepDecision:
			if step.AgentName == "" {
				return invalid(fmt.Sprintf("scenario %s: step %d: agent_name is required", s.Name, i+1))
			}
			agents[step.AgentID] = true
			continue
		case StepThinking, StepResult:
		case StepTool:
			if step.ToolID == "" && step.ToolName == "" {
				return invalid(fmt.Sprintf("scenario %s: step %d: tool_id or tool_name is required", s.Name, i+1))
			}
		default:
			return invalid(fmt.Sprintf("scenario %s: step %d: unknown kind %q", s.Name, i+1, step.Kind))
		}
		if !agents[step.AgentID] {
			return invalid(fmt.Sprintf("scenario %s: step %d: agent %s acts before its decision step", s.Name, i+1, step.AgentID))
		}
	}
	return nil
}

func invalid(msg string) error {
	return core.ErrValidation(core.CodeInvalidScenario, msg)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, core.ErrValidation(core.CodeInvalidScenario, fmt.Sprintf("parsing scenario: %v", err)).WithCause(err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a scenario from a file, or a built-in scenario when ref names
// one.
func Load(ref string) (*Scenario, error) {
	if ref == "" {
		ref = DefaultScenario
	}
	if s, err := Builtin(ref); err == nil {
		return s, nil
	}
	data, err := fsutil.ReadFileScoped(ref)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", ref, err)
	}
	return Parse(data)
}

// Builtin returns an embedded scenario by name.
func Builtin(name string) (*Scenario, error) {
	data, err := scenariosFS.ReadFile("scenarios/" + name + ".yaml")
	if err != nil {
		return nil, core.ErrNotFound("scenario", name)
	}
	return Parse(data)
}

// BuiltinNames lists the embedded scenarios.
func BuiltinNames() []string {
	entries, err := fs.ReadDir(scenariosFS, "scenarios")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Marshal renders the scenario as YAML.
func (s *Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
