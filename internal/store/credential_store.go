package store

import "context"

type Credential struct {
	CredentialID int64
	Name         string
	Description  string
	SecretHash   string

	Secret []byte
}

type CredentialStore interface {
	CreateCredential(context.Context, string, string, string) (*Credential, error)
	ReadCredentialByID(context.Context, int64) (*Credential, error)
	ReadCredentialByName(context.Context, string) (*Credential, error)
	UpdateCredential(context.Context, int64, string, string) error
	DeleteCredential(context.Context, int64) error
	ListCredentials(context.Context) ([]*Credential, error)
}
