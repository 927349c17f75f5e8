package pipeline

import (
	"time"
)

type GroupMode string

const (
	ModeSequential GroupMode = "sequential"
	ModeParallel   GroupMode = "parallel"
)

type HookTrigger string

const (
	TriggerAlways    HookTrigger = "always"
	TriggerOnSuccess HookTrigger = "on_success"
	TriggerOnFailure HookTrigger = "on_failure"
)

// Node is the variant type for a group's children: a Stage, a nested
// Group or an approval Gate.
type Node interface {
	NodeName() string
	node()
}

type Stage struct {
	Name    string
	Action  Action
	Guard   *Guard
	Timeout time.Duration
}

func (s *Stage) NodeName() string { return s.Name }
func (s *Stage) node()            {}

type Group struct {
	Name            string
	Mode            GroupMode
	Guard           *Guard
	Children        []Node
	FailFast        bool
	ContinueOnError bool
	AlwaysRun       bool
}

func (g *Group) NodeName() string { return g.Name }
func (g *Group) node()            {}

// Gate blocks the walk until an external decision arrives or its
// timeout elapses.
type Gate struct {
	Name    string
	Prompt  string
	Timeout time.Duration
}

func (g *Gate) NodeName() string { return g.Name }
func (g *Gate) node()            {}

type Hook struct {
	Name   string
	Action Action
}

// Pipeline is the immutable unit of reuse across runs. No run-specific
// state is stored on it; a validated Pipeline is safe to share between
// concurrent executors.
type Pipeline struct {
	Name   string
	Groups []*Group
	Hooks  map[HookTrigger][]Hook
}

// Stages returns every stage in the tree with its slash-joined path
// identifier, in declaration order.
func (p *Pipeline) Stages() map[string]*Stage {
	stages := make(map[string]*Stage)
	for _, g := range p.Groups {
		collectStages(g, g.Name, stages)
	}
	return stages
}

func collectStages(g *Group, prefix string, stages map[string]*Stage) {
	for _, child := range g.Children {
		path := prefix + "/" + child.NodeName()
		switch n := child.(type) {
		case *Stage:
			stages[path] = n
		case *Group:
			collectStages(n, path, stages)
		}
	}
}
