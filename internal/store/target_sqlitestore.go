package store

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type TargetSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewTargetSQLiteStore(rdb, rwdb *sql.DB) *TargetSQLiteStore {
	return &TargetSQLiteStore{rdb, rwdb}
}

func (store *TargetSQLiteStore) CreateTarget(
	ctx context.Context,
	name, description, endpoint string,
	credentialName *string,
	activateScript string,
) (*Target, error) {
	t := &Target{
		Name:           name,
		Description:    description,
		Endpoint:       endpoint,
		CredentialName: credentialName,
		ActivateScript: activateScript,
	}
	query := `insert into targets (
		name,
		description,
		endpoint,
		credential_name,
		activate_script
	)
	values ($1, $2, $3, $4, $5)
	returning target_id`
	err := sqlscan.Get(
		ctx, store.rwdb, t, query,
		t.Name, t.Description, t.Endpoint, t.CredentialName, t.ActivateScript,
	)
	return t, err
}

func (store *TargetSQLiteStore) ReadTargetByName(
	ctx context.Context,
	name string,
) (*Target, error) {
	t := new(Target)
	query := `select * from targets where name = $1`
	err := sqlscan.Get(ctx, store.rdb, t, query, name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (store *TargetSQLiteStore) ListTargets(ctx context.Context) ([]*Target, error) {
	targets := make([]*Target, 0)
	query := `select * from targets order by name`
	err := sqlscan.Select(ctx, store.rdb, &targets, query)
	return targets, err
}

func (store *TargetSQLiteStore) DeleteTarget(ctx context.Context, id int64) error {
	query := `delete from targets where target_id = $1`
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}
