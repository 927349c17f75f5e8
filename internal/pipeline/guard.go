package pipeline

// Guard decides whether a stage or group subtree executes for a given
// run. A nil guard always passes.
type Guard struct {
	Name      string
	Predicate func(*RunContext) bool
}

func (g *Guard) Evaluate(rc *RunContext) bool {
	if g == nil || g.Predicate == nil {
		return true
	}
	return g.Predicate(rc)
}

// GuardSpec is the declarative form used in pipeline definitions.
// Empty fields match anything; set fields must all match.
type GuardSpec struct {
	Branch      string `yaml:"branch"`
	Environment string `yaml:"environment"`
}

func (gs GuardSpec) IsZero() bool {
	return gs.Branch == "" && gs.Environment == ""
}

// Compile turns the declarative spec into a Guard predicate evaluated
// against the RunContext at run time.
func (gs GuardSpec) Compile() *Guard {
	if gs.IsZero() {
		return nil
	}
	name := "when"
	if gs.Branch != "" {
		name += " branch=" + gs.Branch
	}
	if gs.Environment != "" {
		name += " environment=" + gs.Environment
	}
	return &Guard{
		Name: name,
		Predicate: func(rc *RunContext) bool {
			if gs.Branch != "" && rc.Branch != gs.Branch {
				return false
			}
			if gs.Environment != "" && rc.Environment != gs.Environment {
				return false
			}
			return true
		},
	}
}
