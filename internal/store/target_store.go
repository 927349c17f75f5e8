package store

import "context"

// Target is a stored deploy target: the opaque resource stack a deploy
// stage activates, identified by name.
type Target struct {
	TargetID       int64
	Name           string
	Description    string
	Endpoint       string
	CredentialName *string
	ActivateScript string
}

type TargetStore interface {
	CreateTarget(context.Context, string, string, string, *string, string) (*Target, error)
	ReadTargetByName(context.Context, string) (*Target, error)
	ListTargets(context.Context) ([]*Target, error)
	DeleteTarget(context.Context, int64) error
}
