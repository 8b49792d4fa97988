package kvcache_test

import (
	"testing"

	"github.com/dalemusser/assignhub/internal/app/store/kvcache"
	"github.com/dalemusser/assignhub/internal/testutil"
)

func TestMongo_SetGetOverwrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var c kvcache.Cache = kvcache.NewMongo(db)

	if _, found, err := c.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get(missing) = found %v, err %v", found, err)
	}

	if err := c.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, found, err := c.Get(ctx, "k")
	if err != nil || !found || got != "v2" {
		t.Errorf("Get(k) = %q, %v, %v; want v2", got, found, err)
	}
}
