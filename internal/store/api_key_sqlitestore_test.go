package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAPIKeySQLiteStore_CreateAPIKey(t *testing.T) {
	t.Run("success - api key created", func(t *testing.T) {
		// arrange
		description := "webhook trigger for ci"
		value := uuid.NewString()

		// act
		key, err := apiKeyStore.CreateAPIKey(context.Background(), description, value)

		// assert
		assert.NoError(t, err)
		assert.NotNil(t, key)
		assert.NotEqual(t, 0, key.APIKeyID)
		assert.Equal(t, description, key.Description)
		assert.Equal(t, value, key.Value)
	})
	t.Run("failure - value already exists", func(t *testing.T) {
		// arrange
		value := uuid.NewString()
		_, err := apiKeyStore.CreateAPIKey(context.Background(), "first", value)
		assert.NoError(t, err)

		// act
		key, err := apiKeyStore.CreateAPIKey(context.Background(), "second", value)

		// assert
		assert.Error(t, err)
		assert.Nil(t, key)
	})
}

func TestAPIKeySQLiteStore_ReadAPIKeyByValue(t *testing.T) {
	t.Run("success - api key found", func(t *testing.T) {
		// arrange
		value := uuid.NewString()
		expected, err := apiKeyStore.CreateAPIKey(context.Background(), "lookup", value)
		assert.NoError(t, err)

		// act
		key, err := apiKeyStore.ReadAPIKeyByValue(context.Background(), value)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.APIKeyID, key.APIKeyID)
	})
	t.Run("failure - api key not found", func(t *testing.T) {
		// act
		key, err := apiKeyStore.ReadAPIKeyByValue(context.Background(), uuid.NewString())

		// assert
		assert.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		assert.Nil(t, key)
	})
}

func TestAPIKeySQLiteStore_DeleteAPIKey(t *testing.T) {
	t.Run("success - api key deleted", func(t *testing.T) {
		// arrange
		key, err := apiKeyStore.CreateAPIKey(
			context.Background(), "doomed", uuid.NewString())
		assert.NoError(t, err)

		// act
		err = apiKeyStore.DeleteAPIKey(context.Background(), key.APIKeyID)

		// assert
		assert.NoError(t, err)
		_, err = apiKeyStore.ReadAPIKeyByValue(context.Background(), key.Value)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})
}
