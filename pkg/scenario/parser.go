package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Scenario is one parsed scenario file.
type Scenario struct {
	SourcePath string
	Name       string
	Steps      []Step
}

// header is the optional first document of a scenario file.
type header struct {
	Name string `yaml:"name"`
}

// ParseError carries the file position of a scenario parse failure.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a scenario YAML file.
func ParseFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is a user-provided scenario file
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data, path)
}

// Parse parses scenario YAML. The file holds either a plain step list or a
// header document followed by the step list, separated by "---".
func Parse(data []byte, sourcePath string) (*Scenario, error) {
	sc := &Scenario{SourcePath: sourcePath}

	var docs []yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Path: sourcePath, Message: err.Error()}
		}
		docs = append(docs, node)
	}

	switch len(docs) {
	case 0:
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty scenario file"}
	case 1:
		if err := parseSteps(&docs[0], sc); err != nil {
			return nil, err
		}
	default:
		var h header
		if err := docs[0].Decode(&h); err != nil {
			return nil, &ParseError{Path: sourcePath, Line: docs[0].Line,
				Message: fmt.Sprintf("invalid header: %v", err)}
		}
		sc.Name = h.Name
		if err := parseSteps(&docs[1], sc); err != nil {
			return nil, err
		}
	}

	if sc.Name == "" {
		base := filepath.Base(sourcePath)
		sc.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	return sc, nil
}

func parseSteps(doc *yaml.Node, sc *Scenario) error {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.SequenceNode {
		return &ParseError{Path: sc.SourcePath, Line: root.Line,
			Message: "scenario steps must be a list"}
	}

	for _, node := range root.Content {
		step, err := parseStep(node, sc.SourcePath)
		if err != nil {
			return err
		}
		sc.Steps = append(sc.Steps, step)
	}
	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// Bare step names: "- launchApp".
	if node.Kind == yaml.ScalarNode {
		if !isStepType(node.Value) {
			return nil, &ParseError{Path: sourcePath, Line: node.Line,
				Message: fmt.Sprintf("unknown step type: %s", node.Value)}
		}
		empty := &yaml.Node{Kind: yaml.MappingNode}
		return decodeStep(StepType(node.Value), empty, sourcePath)
	}

	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Path: sourcePath, Line: node.Line,
			Message: "step must be a mapping or step name"}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		return nil, &ParseError{Path: sourcePath, Line: node.Line,
			Message: "unknown step type"}
	}
	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepLaunchApp, StepStopApp, StepClick, StepCheckVisible, StepTypeText,
		StepScroll, StepTapPoint, StepAwaitEvent, StepAwaitEventBackground,
		StepRunScript, StepWait:
		return true
	}
	return false
}

func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	wrap := func(err error) error {
		return &ParseError{Path: sourcePath, Line: valueNode.Line, Message: err.Error()}
	}

	switch stepType {
	case StepLaunchApp:
		return &LaunchAppStep{BaseStep: BaseStep{StepType: stepType}}, nil

	case StepStopApp:
		return &StopAppStep{BaseStep: BaseStep{StepType: stepType}}, nil

	case StepClick:
		var s ClickStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Text = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrap(err)
		}
		s.StepType = stepType
		if err := s.validate(); err != nil {
			return nil, wrap(err)
		}
		return &s, nil

	case StepCheckVisible:
		var s CheckVisibleStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Text = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrap(err)
		}
		s.StepType = stepType
		if s.Selector.Empty() {
			return nil, wrap(fmt.Errorf("checkVisible has no target"))
		}
		if err := s.Selector.validate(); err != nil {
			return nil, wrap(err)
		}
		return &s, nil

	case StepTypeText:
		var s TypeTextStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Text = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrap(err)
		}
		s.StepType = stepType
		return &s, nil

	case StepScroll:
		var s ScrollStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Direction = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrap(err)
		}
		s.StepType = stepType
		return &s, nil

	case StepTapPoint:
		var s TapPointStep
		if err := valueNode.Decode(&s); err != nil {
			return nil, wrap(err)
		}
		s.StepType = stepType
		return &s, nil

	case StepAwaitEvent:
		var s AwaitEventStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Name = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrap(err)
		}
		s.StepType = stepType
		if s.Name == "" {
			return nil, wrap(fmt.Errorf("awaitEvent has no event name"))
		}
		return &s, nil

	case StepAwaitEventBackground:
		var s AwaitEventBackgroundStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Name = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrap(err)
		}
		s.StepType = stepType
		if s.Name == "" {
			return nil, wrap(fmt.Errorf("awaitEventBackground has no event name"))
		}
		return &s, nil

	case StepRunScript:
		var s RunScriptStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Script = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrap(err)
		}
		s.StepType = stepType
		return &s, nil

	case StepWait:
		var s WaitStep
		if valueNode.Kind == yaml.ScalarNode {
			ms, err := strconv.Atoi(valueNode.Value)
			if err != nil {
				return nil, wrap(fmt.Errorf("wait duration must be milliseconds: %v", err))
			}
			s.Ms = ms
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrap(err)
		}
		s.StepType = stepType
		return &s, nil
	}

	return nil, &ParseError{Path: sourcePath, Line: valueNode.Line,
		Message: fmt.Sprintf("unhandled step type: %s", stepType)}
}
