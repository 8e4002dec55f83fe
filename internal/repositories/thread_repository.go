package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/threadloom/backend/internal/apperr"
	"github.com/threadloom/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ThreadFilter narrows a feed query. Count and page reads built from the
// same filter share an identical predicate so totals cannot drift from
// the returned page.
type ThreadFilter struct {
	AuthorIDs        []uint // restrict to these authors; nil means all
	ExcludeAuthorIDs []uint
	TopLevelOnly     bool
	IncludeArchived  bool
}

// ThreadRepository defines the interface for thread data operations
type ThreadRepository interface {
	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThreadByID(ctx context.Context, id string) (*models.Thread, error)
	FindFeed(ctx context.Context, f ThreadFilter, skip, limit int64) ([]models.Thread, error)
	CountFeed(ctx context.Context, f ThreadFilter) (int64, error)
	FindByAuthor(ctx context.Context, authorID uint, includeArchived bool, skip, limit int64) ([]models.Thread, error)
	CountByAuthor(ctx context.Context, authorID uint, includeArchived bool) (int64, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Thread, error)
	FindReplies(ctx context.Context, parentID string, after *time.Time, skip, limit int64) ([]models.Thread, error)
	CountReplies(ctx context.Context, parentID string) (int64, error)
	CountReposts(ctx context.Context, originalID string) (int64, error)
	GetRepost(ctx context.Context, authorID uint, originalID string) (*models.Thread, error)
	SetArchived(ctx context.Context, id string, archived bool) error
	DeleteThread(ctx context.Context, id string) error
}

// MongoThreadRepository implements ThreadRepository for MongoDB
type MongoThreadRepository struct {
	collection *mongo.Collection
}

// NewMongoThreadRepository creates a new MongoThreadRepository
func NewMongoThreadRepository(db *mongo.Database) *MongoThreadRepository {
	return &MongoThreadRepository{collection: db.Collection("threads")}
}

// EnsureIndexes creates the unique partial index enforcing at most one
// repost row per (author, original). Check-then-insert alone would let
// two concurrent reposts both pass the check.
func (r *MongoThreadRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "repost_of_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"repost_of_id": bson.M{"$exists": true}}),
	})
	if err != nil {
		return apperr.Internal("creating thread indexes", err)
	}
	return nil
}

// feedSort orders by creation time descending with ascending object id as
// a stable tie-breaker (insertion order).
var feedSort = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}

func (f ThreadFilter) toQuery() bson.M {
	query := bson.M{}
	if !f.IncludeArchived {
		query["is_archived"] = false
	}
	if f.TopLevelOnly {
		query["kind"] = bson.M{"$ne": models.ThreadKindReply}
	}
	if f.AuthorIDs != nil {
		query["author_id"] = bson.M{"$in": f.AuthorIDs}
	} else if len(f.ExcludeAuthorIDs) > 0 {
		query["author_id"] = bson.M{"$nin": f.ExcludeAuthorIDs}
	}
	return query
}

func (r *MongoThreadRepository) CreateThread(ctx context.Context, thread *models.Thread) error {
	thread.ID = primitive.NewObjectID()
	thread.CreatedAt = time.Now()
	thread.UpdatedAt = thread.CreatedAt
	if _, err := r.collection.InsertOne(ctx, thread); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("thread already reposted")
		}
		return apperr.Internal("inserting thread", err)
	}
	return nil
}

func (r *MongoThreadRepository) GetThreadByID(ctx context.Context, id string) (*models.Thread, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("thread not found")
	}

	var thread models.Thread
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&thread)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("thread not found")
		}
		return nil, apperr.Internal("loading thread", err)
	}
	return &thread, nil
}

func (r *MongoThreadRepository) FindFeed(ctx context.Context, f ThreadFilter, skip, limit int64) ([]models.Thread, error) {
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(feedSort)
	cursor, err := r.collection.Find(ctx, f.toQuery(), findOptions)
	if err != nil {
		return nil, apperr.Internal("querying feed", err)
	}
	defer cursor.Close(ctx)

	var threads []models.Thread
	if err = cursor.All(ctx, &threads); err != nil {
		return nil, apperr.Internal("decoding feed", err)
	}
	return threads, nil
}

func (r *MongoThreadRepository) CountFeed(ctx context.Context, f ThreadFilter) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, f.toQuery())
	if err != nil {
		return 0, apperr.Internal("counting feed", err)
	}
	return count, nil
}

func (r *MongoThreadRepository) FindByAuthor(ctx context.Context, authorID uint, includeArchived bool, skip, limit int64) ([]models.Thread, error) {
	query := bson.M{"author_id": authorID, "kind": bson.M{"$ne": models.ThreadKindReply}}
	if !includeArchived {
		query["is_archived"] = false
	}
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(feedSort)
	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, apperr.Internal("querying author threads", err)
	}
	defer cursor.Close(ctx)

	var threads []models.Thread
	if err = cursor.All(ctx, &threads); err != nil {
		return nil, apperr.Internal("decoding author threads", err)
	}
	return threads, nil
}

func (r *MongoThreadRepository) CountByAuthor(ctx context.Context, authorID uint, includeArchived bool) (int64, error) {
	query := bson.M{"author_id": authorID, "kind": bson.M{"$ne": models.ThreadKindReply}}
	if !includeArchived {
		query["is_archived"] = false
	}
	count, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, apperr.Internal("counting author threads", err)
	}
	return count, nil
}

func (r *MongoThreadRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Thread, error) {
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objIDs = append(objIDs, objID)
	}
	if len(objIDs) == 0 {
		return nil, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objIDs}})
	if err != nil {
		return nil, apperr.Internal("querying threads by id", err)
	}
	defer cursor.Close(ctx)

	var threads []models.Thread
	if err = cursor.All(ctx, &threads); err != nil {
		return nil, apperr.Internal("decoding threads by id", err)
	}
	return threads, nil
}

// FindReplies lists replies in ascending chronological order. A non-nil
// after applies a strictly-greater-than cursor; otherwise skip/limit
// offset paging applies. Callers supply one or the other, never both.
func (r *MongoThreadRepository) FindReplies(ctx context.Context, parentID string, after *time.Time, skip, limit int64) ([]models.Thread, error) {
	query := bson.M{"parent_id": parentID}
	findOptions := options.Find().
		SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if after != nil {
		query["created_at"] = bson.M{"$gt": *after}
	} else {
		findOptions.SetSkip(skip)
	}

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, apperr.Internal("querying replies", err)
	}
	defer cursor.Close(ctx)

	var threads []models.Thread
	if err = cursor.All(ctx, &threads); err != nil {
		return nil, apperr.Internal("decoding replies", err)
	}
	return threads, nil
}

func (r *MongoThreadRepository) CountReplies(ctx context.Context, parentID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"parent_id": parentID})
	if err != nil {
		return 0, apperr.Internal("counting replies", err)
	}
	return count, nil
}

func (r *MongoThreadRepository) CountReposts(ctx context.Context, originalID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"repost_of_id": originalID})
	if err != nil {
		return 0, apperr.Internal("counting reposts", err)
	}
	return count, nil
}

func (r *MongoThreadRepository) GetRepost(ctx context.Context, authorID uint, originalID string) (*models.Thread, error) {
	var thread models.Thread
	err := r.collection.FindOne(ctx, bson.M{"author_id": authorID, "repost_of_id": originalID}).Decode(&thread)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("repost not found")
		}
		return nil, apperr.Internal("loading repost", err)
	}
	return &thread, nil
}

func (r *MongoThreadRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.NotFound("thread not found")
	}

	update := bson.M{"$set": bson.M{"is_archived": archived, "updated_at": time.Now()}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return apperr.Internal("archiving thread", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("thread not found")
	}
	return nil
}

func (r *MongoThreadRepository) DeleteThread(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.NotFound("thread not found")
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return apperr.Internal("deleting thread", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("thread not found")
	}
	return nil
}
