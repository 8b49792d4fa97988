package userstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/assignhub/internal/app/system/indexes"
	"github.com/dalemusser/assignhub/internal/domain/models"
	"github.com/dalemusser/assignhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestPrepare(t *testing.T) {
	u, err := prepare(models.User{FullName: "  Ada   Lovelace ", Email: " ADA@Example.com "})
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}

	// Verify ID was assigned
	if u.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if u.FullName != "Ada Lovelace" {
		t.Errorf("FullName: got %q", u.FullName)
	}
	if u.FullNameCI == "" {
		t.Error("expected FullNameCI to be set")
	}
	if u.Email != "ada@example.com" {
		t.Errorf("Email: got %q", u.Email)
	}
	if u.Status != StatusActive {
		t.Errorf("expected status 'active', got %q", u.Status)
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestPrepare_Validation(t *testing.T) {
	tests := []struct {
		name string
		user models.User
	}{
		{"missing name", models.User{Email: "a@example.com"}},
		{"missing email", models.User{FullName: "Ada"}},
		{"bad status", models.User{FullName: "Ada", Email: "a@example.com", Status: "archived"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := prepare(tt.user)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsValidation(err) {
				t.Errorf("IsValidation(%v) = false", err)
			}
		})
	}
}

func TestStore_ListAndCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	store := New(db)

	for _, name := range []string{"Carol", "alice", "Bob"} {
		if _, err := store.Create(ctx, models.User{FullName: name, Email: name + "@example.com"}); err != nil {
			t.Fatalf("Create(%s) failed: %v", name, err)
		}
	}
	if _, err := store.Create(ctx, models.User{FullName: "Dave", Email: "dave@example.com", Status: StatusDisabled}); err != nil {
		t.Fatalf("Create disabled failed: %v", err)
	}
	if _, err := store.Create(ctx, models.User{FullName: "Alice Two", Email: "ALICE@example.com"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("duplicate email: got %v, want ErrDuplicateEmail", err)
	}

	page1, err := store.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page1) != 2 || page1[0].FullName != "alice" || page1[1].FullName != "Bob" {
		t.Errorf("page 1: %+v", page1)
	}
	page2, err := store.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page2) != 1 || page2[0].FullName != "Carol" {
		t.Errorf("page 2 should hold Carol only (Dave is disabled): %+v", page2)
	}

	got, err := store.GetByIDs(ctx, []primitive.ObjectID{page1[0].ID, primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(got) != 1 || got[page1[0].ID].Email != "alice@example.com" {
		t.Errorf("GetByIDs: %+v", got)
	}
}
