package profiles

import (
	"context"

	"github.com/openenroll/portal/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(ctx context.Context, db *mongo.Database) (*MongoRepo, error) {
	col := db.Collection("profiles")
	if err := database.EnsureUnique(ctx, col, "username"); err != nil {
		return nil, err
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Upsert(ctx context.Context, p *Profile) error {
	_, err := m.col.ReplaceOne(ctx, bson.M{"username": p.Username}, p, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoRepo) UpdateContact(ctx context.Context, username, email, fullName string) error {
	res, err := m.col.UpdateOne(ctx, bson.M{"username": username}, bson.M{"$set": bson.M{"email": email, "fullName": fullName}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) List(ctx context.Context) ([]*Profile, error) {
	cur, err := m.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Profile{}
	for cur.Next(ctx) {
		var p Profile
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, cur.Err()
}
