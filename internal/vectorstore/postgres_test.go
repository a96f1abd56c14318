package vectorstore

import (
	"testing"

	"github.com/xxxsen/docrag/internal/testutil"
)

func TestPostgresStoreContract(t *testing.T) {
	db := testutil.OpenTestDB(t)
	runStoreContract(t, NewPostgresStore(db))
}
