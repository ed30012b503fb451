package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"Romaly/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoTrackRepository struct {
	tracks *mongo.Collection
	users  *mongo.Collection
}

func NewMongoTrackRepository(db *mongo.Database) TrackRepository {
	return &mongoTrackRepository{
		tracks: db.Collection(mongoTracks),
		users:  db.Collection(mongoUsers),
	}
}

func (r *mongoTrackRepository) Create(ctx context.Context, t *model.Track) error {
	stampNew(&t.ID, &t.CreatedAt, &t.UpdatedAt, uuid.NewString)
	if _, err := r.tracks.InsertOne(ctx, newTrackDoc(t)); err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

func (r *mongoTrackRepository) GetByID(ctx context.Context, id string) (*model.Track, error) {
	var d trackDoc
	err := r.tracks.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get track %s: %w", id, err)
	}
	return d.model(), nil
}

// regexContains 不区分大小写的子串匹配
func regexContains(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

// trackFilterDoc 构造查询条件，authorIDs 是名字匹配 Query 的作者
func trackFilterDoc(f TrackFilter, authorIDs []string) bson.M {
	filter := bson.M{}
	if f.AuthorID != "" {
		filter["author_id"] = f.AuthorID
	}
	if f.CollectionID != "" {
		filter["collection_id"] = f.CollectionID
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	if f.Query != "" {
		or := bson.A{bson.M{"title": regexContains(f.Query)}}
		if len(authorIDs) > 0 {
			or = append(or, bson.M{"author_id": bson.M{"$in": authorIDs}})
		}
		filter["$or"] = or
	}
	return filter
}

func (r *mongoTrackRepository) matchingAuthors(ctx context.Context, q string) ([]string, error) {
	cur, err := r.users.Find(ctx, bson.M{"name": regexContains(q)}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *mongoTrackRepository) List(ctx context.Context, f TrackFilter, offset, limit int) ([]*model.Track, int64, error) {
	var authorIDs []string
	if f.Query != "" {
		ids, err := r.matchingAuthors(ctx, f.Query)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to match authors: %w", err)
		}
		authorIDs = ids
	}
	filter := trackFilterDoc(f, authorIDs)

	total, err := r.tracks.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	tracks := []*model.Track{}
	// 越过最后一页时不再查询
	if total == 0 || (limit > 0 && int64(offset) >= total) {
		return tracks, total, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetSkip(int64(offset)).SetLimit(int64(limit))
	}
	docs, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tracks: %w", err)
	}
	return docs, total, nil
}

func (r *mongoTrackRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*model.Track, error) {
	cur, err := r.tracks.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []trackDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*model.Track, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (r *mongoTrackRepository) FindByAuthor(ctx context.Context, authorID string) ([]*model.Track, error) {
	out, err := r.find(ctx, bson.M{"author_id": authorID})
	if err != nil {
		return nil, fmt.Errorf("failed to find tracks of author %s: %w", authorID, err)
	}
	return out, nil
}

func (r *mongoTrackRepository) set(ctx context.Context, filter bson.M, fields bson.M) (bool, error) {
	fields["updated_at"] = time.Now().UTC()
	res, err := r.tracks.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoTrackRepository) UpdateTitle(ctx context.Context, id, title string) (bool, error) {
	ok, err := r.set(ctx, bson.M{"_id": id}, bson.M{"title": title})
	if err != nil {
		return false, fmt.Errorf("failed to update track title: %w", err)
	}
	return ok, nil
}

func (r *mongoTrackRepository) UpdateStatus(ctx context.Context, id string, status model.TrackStatus) (bool, error) {
	ok, err := r.set(ctx, bson.M{"_id": id}, bson.M{"status": string(status)})
	if err != nil {
		return false, fmt.Errorf("failed to update track status: %w", err)
	}
	return ok, nil
}

func (r *mongoTrackRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.tracks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete track: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *mongoTrackRepository) DeleteByAuthor(ctx context.Context, authorID string) (int64, error) {
	res, err := r.tracks.DeleteMany(ctx, bson.M{"author_id": authorID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete tracks of author %s: %w", authorID, err)
	}
	return res.DeletedCount, nil
}

// $ne 同时匹配 null 和缺失字段
func (r *mongoTrackRepository) AssignCollection(ctx context.Context, trackID, collectionID string) (bool, error) {
	ok, err := r.set(ctx,
		bson.M{"_id": trackID, "collection_id": bson.M{"$ne": collectionID}},
		bson.M{"collection_id": collectionID})
	if err != nil {
		return false, fmt.Errorf("failed to assign collection: %w", err)
	}
	return ok, nil
}

func (r *mongoTrackRepository) ClearCollection(ctx context.Context, trackID, collectionID string) (bool, error) {
	ok, err := r.set(ctx,
		bson.M{"_id": trackID, "collection_id": collectionID},
		bson.M{"collection_id": nil})
	if err != nil {
		return false, fmt.Errorf("failed to clear collection: %w", err)
	}
	return ok, nil
}
