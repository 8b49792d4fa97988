// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var problems []string

	if err := ensureUsers(ctx, db, logger); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureProductAssignments(ctx, db, logger); err != nil {
		problems = append(problems, "product_assignments: "+err.Error())
	}
	if err := ensureKVCache(ctx, db, logger); err != nil {
		problems = append(problems, "kv_cache: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db, logger); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	return (a != nil && *a) == (b != nil && *b)
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

// duplicateHint points at the aggregation that finds offending documents
// when a unique index cannot be built.
func duplicateHint(coll, sig string) string {
	switch {
	case coll == "product_assignments" && strings.Contains(sig, "user_id:1"):
		return " (duplicate assignments present). Example finder:\n" +
			`db.product_assignments.aggregate([{ $group: { _id: { p: "$product_id", u: "$user_id" }, n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	case coll == "users" && strings.Contains(sig, "email:1"):
		return " (duplicates exist on users.email). Example finder:\n" +
			`db.users.aggregate([{ $group: { _id: "$email", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	}
	return ""
}

func listExisting(ctx context.Context, coll *mongo.Collection, log *zap.Logger) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			log.Warn("failed to decode existing index", zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel, logger *zap.Logger) error {
	var errs []string
	log := logger.With(zap.String("collection", coll.Name()))

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		unique := desiredUnique != nil && *desiredUnique
		desiredSig := keySig(m.Keys.(bson.D))
		ilog := log.With(zap.String("name", desiredName), zap.String("keys", desiredSig), zap.Bool("unique", unique))

		start := time.Now()
		ilog.Info("ensuring index")

		recreate := func(dropName string) {
			if _, err := coll.Indexes().DropOne(ctx, dropName); err != nil {
				ilog.Warn("drop existing index failed", zap.String("existing", dropName), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				return
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				if isDuplicateKeyErr(err) && unique {
					errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index%s", coll.Name(), desiredName, duplicateHint(coll.Name(), desiredSig)))
				} else {
					errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				}
				return
			}
			ilog.Info("index dropped and recreated", zap.String("took", time.Since(start).String()))
		}

		existing := listExisting(ctx, coll, log)
		if ex, ok := existing[desiredSig]; ok {
			switch {
			case !sameBoolPtr(desiredUnique, ex.Unique):
				// Options mismatch (e.g., upgrading to unique).
				recreate(ex.Name)
			case desiredName != "" && ex.Name != desiredName:
				ilog.Info("renaming index to align with desired name", zap.String("from", ex.Name))
				recreate(ex.Name)
			default:
				ilog.Info("reusing existing index", zap.String("took", time.Since(start).String()))
			}
			continue
		}

		// No existing index with the same keys: create it.
		created, err := coll.Indexes().CreateOne(ctx, m)
		if err == nil {
			ilog.Info("index ensured",
				zap.String("created_name", created),
				zap.String("took", time.Since(start).String()))
			continue
		}
		if isOptionsConflictErr(err) {
			if ex, ok := listExisting(ctx, coll, log)[desiredSig]; ok {
				if sameBoolPtr(desiredUnique, ex.Unique) {
					ilog.Info("reusing existing index (post-conflict)", zap.String("existing", ex.Name))
				} else {
					recreate(ex.Name)
				}
				continue
			}
		}
		ilog.Warn("index ensure failed", zap.String("took", time.Since(start).String()), zap.Error(err))
		if isDuplicateKeyErr(err) && unique {
			errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index%s", coll.Name(), desiredName, duplicateHint(coll.Name(), desiredSig)))
		} else {
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		// Email is unique across the directory
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Directory listing: status filter, folded-name sort, _id tiebreak
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_status_fullnameci_id"),
		},
	}, logger)
}

func ensureProductAssignments(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("product_assignments"), []mongo.IndexModel{
		// One assignment per (product, user); the duplicate response depends on it
		{
			Keys:    bson.D{{Key: "product_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_product_assignments_product_user"),
		},
		// Assigned-users listing in assignment order
		{
			Keys: bson.D{
				{Key: "product_id", Value: 1},
				{Key: "created_at", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_product_assignments_product_created_id"),
		},
		// Reverse lookup: products assigned to a user
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_product_assignments_user"),
		},
	}, logger)
}

func ensureKVCache(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("kv_cache"), []mongo.IndexModel{
		// Housekeeping queries for stale snapshots
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetName("idx_kv_cache_updated_at"),
		},
	}, logger)
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		// Recent activity, newest first
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_events_ts"),
		},
		// Per-product history
		{
			Keys:    bson.D{{Key: "product_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_events_product_ts"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_events_category_type_ts"),
		},
	}, logger)
}
