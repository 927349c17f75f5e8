package pipeline

import (
	"time"

	"github.com/goccy/go-yaml"
)

// ActionResolver builds the concrete action behind a stage or hook
// definition. Resolution is injected so the definition format stays
// decoupled from the action implementations.
type ActionResolver func(kind string, params map[string]string) (Action, error)

type pipelineDef struct {
	Pipeline string               `yaml:"pipeline"`
	Groups   []nodeDef            `yaml:"groups"`
	Hooks    map[string][]hookDef `yaml:"hooks"`
}

// nodeDef covers all three node kinds; exactly one of the stage, group
// or approval keys discriminates which one an item is.
type nodeDef struct {
	Stage    string `yaml:"stage"`
	Group    string `yaml:"group"`
	Approval string `yaml:"approval"`

	// stage fields
	Run            string            `yaml:"run"`
	Action         string            `yaml:"action"`
	Params         map[string]string `yaml:"params"`
	TimeoutSeconds int64             `yaml:"timeout_seconds"`

	// group fields
	Mode            string    `yaml:"mode"`
	FailFast        bool      `yaml:"fail_fast"`
	ContinueOnError bool      `yaml:"continue_on_error"`
	AlwaysRun       bool      `yaml:"always_run"`
	Stages          []nodeDef `yaml:"stages"`

	// approval fields
	Prompt string `yaml:"prompt"`

	When GuardSpec `yaml:"when"`
}

type hookDef struct {
	Hook   string            `yaml:"hook"`
	Action string            `yaml:"action"`
	Params map[string]string `yaml:"params"`
}

// Parse unmarshals a YAML pipeline definition, resolves its actions and
// validates the result.
func Parse(data []byte, resolve ActionResolver) (*Pipeline, error) {
	def := new(pipelineDef)
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, newValidationError("", "unmarshaling definition: %v", err)
	}

	p := &Pipeline{Name: def.Pipeline}
	for _, nd := range def.Groups {
		if nd.Group == "" {
			return nil, newValidationError(def.Pipeline, "top-level items must be groups")
		}
		g, err := buildGroup(nd, resolve)
		if err != nil {
			return nil, err
		}
		p.Groups = append(p.Groups, g)
	}

	if len(def.Hooks) > 0 {
		p.Hooks = make(map[HookTrigger][]Hook, len(def.Hooks))
		for trigger, defs := range def.Hooks {
			for _, hd := range defs {
				action, err := resolve(hd.Action, hd.Params)
				if err != nil {
					return nil, newValidationError(hd.Hook, "resolving hook action: %v", err)
				}
				p.Hooks[HookTrigger(trigger)] = append(
					p.Hooks[HookTrigger(trigger)],
					Hook{Name: hd.Hook, Action: action},
				)
			}
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func buildGroup(nd nodeDef, resolve ActionResolver) (*Group, error) {
	mode := GroupMode(nd.Mode)
	if nd.Mode == "" {
		mode = ModeSequential
	}
	g := &Group{
		Name:            nd.Group,
		Mode:            mode,
		Guard:           nd.When.Compile(),
		FailFast:        nd.FailFast,
		ContinueOnError: nd.ContinueOnError,
		AlwaysRun:       nd.AlwaysRun,
	}
	for _, child := range nd.Stages {
		node, err := buildNode(child, resolve)
		if err != nil {
			return nil, err
		}
		g.Children = append(g.Children, node)
	}
	return g, nil
}

func buildNode(nd nodeDef, resolve ActionResolver) (Node, error) {
	switch {
	case nd.Group != "":
		return buildGroup(nd, resolve)
	case nd.Approval != "":
		return &Gate{
			Name:    nd.Approval,
			Prompt:  nd.Prompt,
			Timeout: time.Duration(nd.TimeoutSeconds) * time.Second,
		}, nil
	case nd.Stage != "":
		kind := nd.Action
		params := nd.Params
		if nd.Run != "" {
			if kind != "" {
				return nil, newValidationError(nd.Stage, "stage declares both run and action")
			}
			kind = "shell"
			params = map[string]string{"script": nd.Run}
		}
		action, err := resolve(kind, params)
		if err != nil {
			return nil, newValidationError(nd.Stage, "resolving action: %v", err)
		}
		return &Stage{
			Name:    nd.Stage,
			Action:  action,
			Guard:   nd.When.Compile(),
			Timeout: time.Duration(nd.TimeoutSeconds) * time.Second,
		}, nil
	default:
		return nil, newValidationError("", "item is not a stage, group or approval")
	}
}
