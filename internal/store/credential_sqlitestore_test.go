package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func generateCredential(t *testing.T) *Credential {
	t.Helper()
	c, err := credentialStore.CreateCredential(
		context.Background(),
		fmt.Sprintf("credential-%s", uuid.NewString()),
		"generated test credential",
		"011aabbcc",
	)
	assert.NoError(t, err)
	return c
}

func TestCredentialSQLiteStore_CreateCredential(t *testing.T) {
	t.Run("success - credential created", func(t *testing.T) {
		// arrange
		name := fmt.Sprintf("deploy-key-%s", uuid.NewString())
		description := "ssh key for the deploy host"
		secretHash := "6622ffee"

		// act
		c, err := credentialStore.CreateCredential(
			context.Background(), name, description, secretHash)

		// assert
		assert.NoError(t, err)
		assert.NotNil(t, c)
		assert.NotEqual(t, 0, c.CredentialID)
		assert.Equal(t, name, c.Name)
		assert.Equal(t, description, c.Description)
		assert.Equal(t, secretHash, c.SecretHash)
	})
	t.Run("failure - name already exists", func(t *testing.T) {
		// arrange
		existing := generateCredential(t)

		// act
		c, err := credentialStore.CreateCredential(
			context.Background(), existing.Name, "duplicate", "00ff")

		// assert
		assert.Error(t, err)
		assert.Nil(t, c)
	})
}

func TestCredentialSQLiteStore_ReadCredentialByName(t *testing.T) {
	t.Run("success - credential found", func(t *testing.T) {
		// arrange
		expected := generateCredential(t)

		// act
		c, err := credentialStore.ReadCredentialByName(context.Background(), expected.Name)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.CredentialID, c.CredentialID)
		assert.Equal(t, expected.SecretHash, c.SecretHash)
	})
	t.Run("failure - credential not found", func(t *testing.T) {
		// act
		c, err := credentialStore.ReadCredentialByName(context.Background(), uuid.NewString())

		// assert
		assert.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		assert.Nil(t, c)
	})
}

func TestCredentialSQLiteStore_UpdateCredential(t *testing.T) {
	t.Run("success - name and description updated", func(t *testing.T) {
		// arrange
		c := generateCredential(t)
		name := fmt.Sprintf("renamed-%s", uuid.NewString())

		// act
		err := credentialStore.UpdateCredential(
			context.Background(), c.CredentialID, name, "renamed")

		// assert
		assert.NoError(t, err)
		updated, err := credentialStore.ReadCredentialByID(context.Background(), c.CredentialID)
		assert.NoError(t, err)
		assert.Equal(t, name, updated.Name)
		assert.Equal(t, "renamed", updated.Description)
		assert.Equal(t, c.SecretHash, updated.SecretHash)
	})
}

func TestCredentialSQLiteStore_DeleteCredential(t *testing.T) {
	t.Run("success - credential deleted", func(t *testing.T) {
		// arrange
		c := generateCredential(t)

		// act
		err := credentialStore.DeleteCredential(context.Background(), c.CredentialID)

		// assert
		assert.NoError(t, err)
		_, err = credentialStore.ReadCredentialByID(context.Background(), c.CredentialID)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})
}
