package action

import (
	"github.com/haatos/conveyor/internal/notify"
)

// DefaultRegistry wires up the built-in action kinds. The deploy kind
// is only registered when a target resolver is available.
func DefaultRegistry(targets TargetResolver, notifier *notify.Notifier) *Registry {
	r := NewRegistry()
	r.Register("shell", NewShellFactory())
	r.Register("remote", NewRemoteFactory())
	r.Register("notify", NewNotifyFactory(notifier))
	if targets != nil {
		r.Register("deploy", NewDeployFactory(targets))
	}
	return r
}
