package main

import (
	"context"

	"github.com/ddrive-io/ddrive/pkg/chunkcrypto"
	"github.com/ddrive-io/ddrive/pkg/metastore"
)

// userKeyResolver closes over the metadata store to satisfy
// chunkengine.Engine's UserKey field: an encrypted write's first call for a
// given user generates and persists a key; every call after reuses it.
func userKeyResolver(store metastore.Store) func(ctx context.Context, userID string) ([]byte, error) {
	return func(ctx context.Context, userID string) ([]byte, error) {
		u, err := store.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(u.EncryptionKey) > 0 {
			return u.EncryptionKey, nil
		}
		key, err := chunkcrypto.GenerateUserKey()
		if err != nil {
			return nil, err
		}
		if err := store.UpdateUserEncryptionKey(ctx, userID, key); err != nil {
			return nil, err
		}
		return key, nil
	}
}
