package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Romaly/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoUserRepository struct {
	users *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{users: db.Collection(mongoUsers)}
}

func (r *mongoUserRepository) Create(ctx context.Context, u *model.User) error {
	stampNew(&u.ID, &u.CreatedAt, &u.UpdatedAt, uuid.NewString)
	if _, err := r.users.InsertOne(ctx, newUserDoc(u)); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var d userDoc
	if err := r.users.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return d.model(), nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"login": login})
}

func (r *mongoUserRepository) FindByLoginOrName(ctx context.Context, v string) (*model.User, error) {
	u, err := r.FindByLogin(ctx, v)
	if err != nil || u != nil {
		return u, err
	}
	return r.findOne(ctx, bson.M{"name": v})
}

func (r *mongoUserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	return r.findOne(ctx, bson.M{
		"reset_token_hash":       tokenHash,
		"reset_token_expires_at": bson.M{"$gt": now},
	})
}

func (r *mongoUserRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*model.User, error) {
	cur, err := r.users.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*model.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return out, nil
}

func (r *mongoUserRepository) update(ctx context.Context, id string, update bson.M) (bool, error) {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return false, fmt.Errorf("failed to update user %s: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) (bool, error) {
	return r.update(ctx, id, bson.M{"$set": bson.M{
		"reset_token_hash":       tokenHash,
		"reset_token_expires_at": expiresAt,
		"updated_at":             time.Now().UTC(),
	}})
}

func (r *mongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (bool, error) {
	return r.update(ctx, id, bson.M{
		"$set":   bson.M{"password_hash": passwordHash, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"reset_token_hash": "", "reset_token_expires_at": ""},
	})
}

func (r *mongoUserRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *mongoUserRepository) List(ctx context.Context, roles []model.Role, limit int) ([]*model.User, error) {
	filter := bson.M{}
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, role := range roles {
			names[i] = role.String()
		}
		filter["role"] = bson.M{"$in": names}
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	out, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return out, nil
}
