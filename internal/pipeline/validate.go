package pipeline

import (
	"fmt"
)

// ValidationError reports a malformed pipeline definition. It is always
// raised before a run starts, never during one.
type ValidationError struct {
	Scope   string
	Message string
}

func (ve *ValidationError) Error() string {
	if ve.Scope != "" {
		return fmt.Sprintf("invalid pipeline: %s: %s", ve.Scope, ve.Message)
	}
	return "invalid pipeline: " + ve.Message
}

func newValidationError(scope, format string, args ...any) *ValidationError {
	return &ValidationError{Scope: scope, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the pipeline's structural invariants: identifiers are
// unique within their parent scope, groups are non-empty with a known
// mode, hook triggers are known, and the node tree is a tree — no node
// appears twice and no group contains itself.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return newValidationError("", "pipeline name is required")
	}

	seen := make(map[Node]string)
	names := make(map[string]struct{})
	for _, g := range p.Groups {
		if g == nil {
			return newValidationError(p.Name, "nil top-level group")
		}
		if _, ok := names[g.Name]; ok {
			return newValidationError(p.Name, "duplicate group %q", g.Name)
		}
		names[g.Name] = struct{}{}
		if err := validateGroup(g, g.Name, seen); err != nil {
			return err
		}
	}

	for trigger, hooks := range p.Hooks {
		switch trigger {
		case TriggerAlways, TriggerOnSuccess, TriggerOnFailure:
		default:
			return newValidationError(p.Name, "unknown hook trigger %q", trigger)
		}
		for _, h := range hooks {
			if h.Action == nil {
				return newValidationError(p.Name, "hook %q has no action", h.Name)
			}
		}
	}

	return nil
}

func validateGroup(g *Group, path string, seen map[Node]string) error {
	if prev, ok := seen[g]; ok {
		return newValidationError(path, "group already used at %s", prev)
	}
	seen[g] = path

	if g.Name == "" {
		return newValidationError(path, "group name is required")
	}
	if g.Mode != ModeSequential && g.Mode != ModeParallel {
		return newValidationError(path, "unknown group mode %q", g.Mode)
	}
	if len(g.Children) == 0 {
		return newValidationError(path, "group has no children")
	}

	names := make(map[string]struct{})
	for _, child := range g.Children {
		if child == nil {
			return newValidationError(path, "nil child node")
		}
		name := child.NodeName()
		if name == "" {
			return newValidationError(path, "child name is required")
		}
		if _, ok := names[name]; ok {
			return newValidationError(path, "duplicate child %q", name)
		}
		names[name] = struct{}{}

		childPath := path + "/" + name
		switch n := child.(type) {
		case *Stage:
			if prev, ok := seen[n]; ok {
				return newValidationError(childPath, "stage already used at %s", prev)
			}
			seen[n] = childPath
			if n.Action == nil {
				return newValidationError(childPath, "stage has no action")
			}
		case *Group:
			if err := validateGroup(n, childPath, seen); err != nil {
				return err
			}
		case *Gate:
			if prev, ok := seen[n]; ok {
				return newValidationError(childPath, "gate already used at %s", prev)
			}
			seen[n] = childPath
			if n.Timeout <= 0 {
				return newValidationError(childPath, "gate timeout is required")
			}
		default:
			return newValidationError(childPath, "unknown node type %T", child)
		}
	}

	return nil
}
