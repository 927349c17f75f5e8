package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/haatos/conveyor/internal/pipeline"
	"github.com/haatos/conveyor/internal/security"
	"github.com/haatos/conveyor/internal/store"
)

type CredentialWriter interface {
	CreateCredential(context.Context, string, string, string) (*store.Credential, error)
	UpdateCredential(context.Context, int64, string, string) error
	DeleteCredential(context.Context, int64) error
}

type CredentialReader interface {
	ReadCredentialByID(context.Context, int64) (*store.Credential, error)
	ReadCredentialByName(context.Context, string) (*store.Credential, error)
	ListCredentials(context.Context) ([]*store.Credential, error)
}

type CredentialStore interface {
	CredentialWriter
	CredentialReader
}

type CredentialService struct {
	credentialStore CredentialStore
	encrypter       security.Encrypter
}

func NewCredentialService(
	s CredentialStore,
	encrypter security.Encrypter,
) *CredentialService {
	return &CredentialService{credentialStore: s, encrypter: encrypter}
}

func (s *CredentialService) CreateCredential(
	ctx context.Context,
	name, description, secret string,
) (*store.Credential, error) {
	hash := s.encrypter.EncryptAES(secret)
	c, err := s.credentialStore.CreateCredential(ctx, name, description, hash)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CredentialService) GetCredentialByID(
	ctx context.Context,
	credentialID int64,
) (*store.Credential, error) {
	return s.credentialStore.ReadCredentialByID(ctx, credentialID)
}

func (s *CredentialService) ListCredentials(ctx context.Context) ([]*store.Credential, error) {
	credentials, err := s.credentialStore.ListCredentials(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return credentials, nil
}

func (s *CredentialService) UpdateCredential(
	ctx context.Context,
	credentialID int64,
	name, description string,
) error {
	return s.credentialStore.UpdateCredential(ctx, credentialID, name, description)
}

func (s *CredentialService) DeleteCredential(ctx context.Context, credentialID int64) error {
	return s.credentialStore.DeleteCredential(ctx, credentialID)
}

// ResolveCredentials decrypts every stored credential into the opaque
// secret set a run context carries.
func (s *CredentialService) ResolveCredentials(
	ctx context.Context,
) (map[string]pipeline.Secret, error) {
	credentials, err := s.ListCredentials(ctx)
	if err != nil {
		return nil, err
	}
	secrets := make(map[string]pipeline.Secret, len(credentials))
	for _, c := range credentials {
		plain, err := s.encrypter.DecryptAES(c.SecretHash)
		if err != nil {
			return nil, err
		}
		secrets[c.Name] = pipeline.Secret(plain)
	}
	return secrets, nil
}
