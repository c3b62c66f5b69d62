package enrollment

import (
	"context"
	"errors"
	"time"

	"github.com/openenroll/portal/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores one document per user in the "enrollments" collection.
// The unique index on "user" is what serializes concurrent first submissions.
type MongoRepo struct {
	col *mongo.Collection
	seq *database.Sequences
}

func NewMongoRepo(ctx context.Context, db *mongo.Database) (*MongoRepo, error) {
	col := db.Collection("enrollments")
	if err := database.EnsureUnique(ctx, col, "user"); err != nil {
		return nil, err
	}
	if err := database.EnsureUnique(ctx, col, "id"); err != nil {
		return nil, err
	}
	return &MongoRepo{col: col, seq: database.NewSequences(db)}, nil
}

func (m *MongoRepo) GetByUser(ctx context.Context, user string) (*Record, error) {
	return m.findOne(ctx, bson.M{"user": user})
}

func (m *MongoRepo) findOne(ctx context.Context, filter bson.M) (*Record, error) {
	var r Record
	if err := m.col.FindOne(ctx, filter).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	r.Data = normalizeMap(r.Data)
	return &r, nil
}

func (m *MongoRepo) Create(ctx context.Context, r *Record) error {
	id, err := m.seq.Next(ctx, "enrollments")
	if err != nil {
		return err
	}
	r.ID = id
	r.CreatedAt = time.Now().UTC()
	r.Version = 1
	if _, err := m.col.InsertOne(ctx, r); err != nil {
		if database.IsDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (m *MongoRepo) UpdateData(ctx context.Context, id, version int64, data map[string]interface{}) (*Record, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"data": data}, "$inc": bson.M{"version": int64(1)}}
	var r Record
	err := m.col.FindOneAndUpdate(ctx, bson.M{"id": id, "version": version}, update, opts).Decode(&r)
	if err == nil {
		r.Data = normalizeMap(r.Data)
		return &r, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	n, cerr := m.col.CountDocuments(ctx, bson.M{"id": id})
	if cerr != nil {
		return nil, cerr
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}

func (m *MongoRepo) SetConfirmation(ctx context.Context, id int64, code string) error {
	res, err := m.col.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"confirmationCode": code}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) List(ctx context.Context) ([]*Record, error) {
	cur, err := m.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Record{}
	for cur.Next(ctx) {
		var r Record
		if err := cur.Decode(&r); err != nil {
			return nil, err
		}
		r.Data = normalizeMap(r.Data)
		out = append(out, &r)
	}
	return out, cur.Err()
}

// normalizeMap turns the driver's primitive.D / primitive.A values back
// into the plain JSON shapes claims arrive in.
func normalizeMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(x))
		for _, e := range x {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case primitive.M:
		return normalizeMap(map[string]interface{}(x))
	case map[string]interface{}:
		return normalizeMap(x)
	case primitive.A:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}
