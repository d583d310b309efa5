package sqlstore

import (
	"context"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
	"github.com/ddrive-io/ddrive/pkg/model"
)

// CreateUser implements metastore.Store.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, auth_party_id, display_name, encryption_key, encrypt_by_default, recycle_bin_enabled, allow_shared_with_me)
		VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.AuthPartyID, u.DisplayName, u.EncryptionKey, u.EncryptByDefault, u.RecycleBinEnabled, u.AllowSharedWithMe)
	return translateErr(err)
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.AuthPartyID, &u.DisplayName, &u.EncryptionKey,
		&u.EncryptByDefault, &u.RecycleBinEnabled, &u.AllowSharedWithMe)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser implements metastore.Store.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, auth_party_id, display_name, encryption_key, encrypt_by_default, recycle_bin_enabled, allow_shared_with_me
		 FROM users WHERE id=?`, id)
	u, err := scanUser(row)
	if isNoRows(err) {
		return nil, errtypes.NotFound(id)
	}
	return u, err
}

// FindUserByAuthPartyID implements metastore.Store.
func (s *Store) FindUserByAuthPartyID(ctx context.Context, authPartyID string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, auth_party_id, display_name, encryption_key, encrypt_by_default, recycle_bin_enabled, allow_shared_with_me
		 FROM users WHERE auth_party_id=?`, authPartyID)
	u, err := scanUser(row)
	if isNoRows(err) {
		return nil, errtypes.NotFound(authPartyID)
	}
	return u, err
}

// UpdateUserEncryptionKey implements metastore.Store, for the lazy
// first-encrypted-write key creation chunkcrypto.GenerateUserKey backs.
func (s *Store) UpdateUserEncryptionKey(ctx context.Context, userID string, key []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET encryption_key=? WHERE id=?`, key, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errtypes.NotFound(userID)
	}
	return nil
}
