package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Romaly/logger"
	"Romaly/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCollectionRepository struct {
	client      *mongo.Client
	collections *mongo.Collection
	tracks      *mongo.Collection
	// 单机 mongod 不支持事务，此时按顺序执行，读取端会把悬空引用当作 null
	useTx bool
}

func NewMongoCollectionRepository(db *mongo.Database, useTx bool) CollectionRepository {
	return &mongoCollectionRepository{
		client:      db.Client(),
		collections: db.Collection(mongoCollections),
		tracks:      db.Collection(mongoTracks),
		useTx:       useTx,
	}
}

func (r *mongoCollectionRepository) Create(ctx context.Context, c *model.Collection) error {
	stampNew(&c.ID, &c.CreatedAt, &c.UpdatedAt, uuid.NewString)
	if _, err := r.collections.InsertOne(ctx, newCollectionDoc(c)); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateCollectionName
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *mongoCollectionRepository) findOne(ctx context.Context, filter bson.M) (*model.Collection, error) {
	var d collectionDoc
	if err := r.collections.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return d.model(), nil
}

func (r *mongoCollectionRepository) GetByID(ctx context.Context, id string) (*model.Collection, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoCollectionRepository) FindByName(ctx context.Context, name string) (*model.Collection, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *mongoCollectionRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*model.Collection, error) {
	cur, err := r.collections.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []collectionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*model.Collection, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (r *mongoCollectionRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.Collection, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get collections: %w", err)
	}
	return out, nil
}

func (r *mongoCollectionRepository) List(ctx context.Context, offset, limit int) ([]*model.Collection, int64, error) {
	total, err := r.collections.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count collections: %w", err)
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetSkip(int64(offset)).SetLimit(int64(limit))
	}
	out, err := r.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list collections: %w", err)
	}
	return out, total, nil
}

func (r *mongoCollectionRepository) Update(ctx context.Context, id string, u CollectionUpdate) (bool, error) {
	fields := bson.M{"updated_at": time.Now().UTC()}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.CoverRef != nil {
		fields["cover_ref"] = *u.CoverRef
	}
	res, err := r.collections.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		if isDuplicateKey(err) {
			return false, ErrDuplicateCollectionName
		}
		return false, fmt.Errorf("failed to update collection: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoCollectionRepository) Delete(ctx context.Context, id string) (bool, error) {
	run := func(ctx context.Context) (bool, error) {
		if _, err := r.tracks.UpdateMany(ctx,
			bson.M{"collection_id": id},
			bson.M{"$set": bson.M{"collection_id": nil, "updated_at": time.Now().UTC()}}); err != nil {
			return false, err
		}
		res, err := r.collections.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return false, err
		}
		return res.DeletedCount > 0, nil
	}

	if !r.useTx {
		deleted, err := run(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to delete collection: %w", err)
		}
		return deleted, nil
	}

	session, err := r.client.StartSession()
	if err != nil {
		return false, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	out, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return run(sc)
	})
	if err != nil {
		logger.Error("删除合集事务失败", logger.String("collectionId", id), logger.ErrorField(err))
		return false, fmt.Errorf("failed to delete collection: %w", err)
	}
	deleted, _ := out.(bool)
	return deleted, nil
}
