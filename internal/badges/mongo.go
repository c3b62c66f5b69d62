package badges

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openenroll/portal/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo keeps badges and awards in two collections. The unique indexes
// on awards are the authoritative guard against duplicate codes and
// duplicate (username, badge) grants.
type MongoRepo struct {
	badges *mongo.Collection
	awards *mongo.Collection
	seq    *database.Sequences
}

func NewMongoRepo(ctx context.Context, db *mongo.Database) (*MongoRepo, error) {
	m := &MongoRepo{
		badges: db.Collection("badges"),
		awards: db.Collection("badge_awards"),
		seq:    database.NewSequences(db),
	}
	for _, idx := range []struct {
		col  *mongo.Collection
		keys []string
	}{
		{m.badges, []string{"id"}},
		{m.awards, []string{"id"}},
		{m.awards, []string{"verificationCode"}},
		{m.awards, []string{"username", "badgeId"}},
	} {
		if err := database.EnsureUnique(ctx, idx.col, idx.keys...); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MongoRepo) CreateBadge(ctx context.Context, b *Badge) error {
	id, err := m.seq.Next(ctx, "badges")
	if err != nil {
		return err
	}
	b.ID = id
	_, err = m.badges.InsertOne(ctx, b)
	return err
}

func (m *MongoRepo) UpdateBadge(ctx context.Context, b *Badge) error {
	res, err := m.badges.UpdateOne(ctx, bson.M{"id": b.ID}, bson.M{"$set": bson.M{
		"name":        b.Name,
		"description": b.Description,
		"image":       b.Image,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrBadgeNotFound
	}
	return nil
}

func (m *MongoRepo) GetBadge(ctx context.Context, id int64) (*Badge, error) {
	var b Badge
	if err := m.badges.FindOne(ctx, bson.M{"id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (m *MongoRepo) ListBadges(ctx context.Context) ([]*Badge, error) {
	cur, err := m.badges.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Badge{}
	for cur.Next(ctx) {
		var b Badge
		if err := cur.Decode(&b); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, cur.Err()
}

// DeleteBadge removes the badge first so no new grant can pass the badge
// check, then its awards.
func (m *MongoRepo) DeleteBadge(ctx context.Context, id int64) error {
	res, err := m.badges.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrBadgeNotFound
	}
	_, err = m.awards.DeleteMany(ctx, bson.M{"badgeId": id})
	return err
}

func (m *MongoRepo) CreateAward(ctx context.Context, a *Award) error {
	id, err := m.seq.Next(ctx, "badge_awards")
	if err != nil {
		return err
	}
	a.ID = id
	if _, err := m.awards.InsertOne(ctx, a); err != nil {
		return awardInsertError(err)
	}
	return nil
}

// Index names as generated by EnsureUnique for the award collection.
const (
	codeIndex  = "verificationCode_1"
	grantIndex = "username_1_badgeId_1"
)

// awardInsertError maps a duplicate key on the code or grant index to its
// sentinel. Any other failure, including a clash on id, is returned wrapped.
func awardInsertError(err error) error {
	if database.IsDuplicateKey(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, codeIndex):
			return ErrDuplicateCode
		case strings.Contains(msg, grantIndex):
			return ErrDuplicateAward
		}
	}
	return fmt.Errorf("insert award: %w", err)
}

func (m *MongoRepo) FindAward(ctx context.Context, username string, badgeID int64) (*Award, error) {
	return m.findAward(ctx, bson.M{"username": username, "badgeId": badgeID})
}

func (m *MongoRepo) GetAwardByCode(ctx context.Context, code string) (*Award, error) {
	return m.findAward(ctx, bson.M{"verificationCode": code})
}

func (m *MongoRepo) findAward(ctx context.Context, filter bson.M) (*Award, error) {
	var a Award
	if err := m.awards.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (m *MongoRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	n, err := m.awards.CountDocuments(ctx, bson.M{"verificationCode": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *MongoRepo) DeleteAward(ctx context.Context, id int64) error {
	res, err := m.awards.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrAwardNotFound
	}
	return nil
}

func (m *MongoRepo) ListAwards(ctx context.Context) ([]*Award, error) {
	return m.listAwards(ctx, bson.M{})
}

func (m *MongoRepo) ListAwardsForUser(ctx context.Context, username string) ([]*Award, error) {
	return m.listAwards(ctx, bson.M{"username": username})
}

func (m *MongoRepo) listAwards(ctx context.Context, filter bson.M) ([]*Award, error) {
	opts := options.Find().SetSort(bson.D{{Key: "issuedAt", Value: -1}, {Key: "id", Value: -1}})
	cur, err := m.awards.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Award{}
	for cur.Next(ctx) {
		var a Award
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, cur.Err()
}
