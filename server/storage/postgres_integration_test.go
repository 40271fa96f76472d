//go:build integration

package storage

import "testing"

func TestPostgresStoreContract(t *testing.T) {
	store := newPostgresTestStore(t)
	runStoreContract(t, store)
}
