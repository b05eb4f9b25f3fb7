package docstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/userapi/backend/internal/auth"
)

type tokenDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	TokenHash string        `bson:"tokenHash"`
	OwnerID   string        `bson:"ownerId"`
	CreatedAt time.Time     `bson:"createdAt"`
	ExpiresAt time.Time     `bson:"expiresAt"`
}

// TokenStore implements auth.TokenStore. The TTL index removes expired
// documents within about a minute; Find callers still compare ExpiresAt.
type TokenStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func (s *TokenStore) Save(ctx context.Context, ownerID, token string, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.coll.InsertOne(ctx, tokenDoc{
		TokenHash: auth.HashToken(token),
		OwnerID:   ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	return err
}

func (s *TokenStore) Find(ctx context.Context, token string) (*auth.RefreshRecord, error) {
	var doc tokenDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "tokenHash", Value: auth.HashToken(token)}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrRecordNotFound
		}
		return nil, err
	}
	return &auth.RefreshRecord{
		TokenHash: doc.TokenHash,
		OwnerID:   doc.OwnerID,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

func (s *TokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "tokenHash", Value: auth.HashToken(token)}})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *TokenStore) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{{Key: "ownerId", Value: ownerID}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *TokenStore) IsExpired(ctx context.Context, token string) (bool, error) {
	return auth.IsExpired(ctx, s, token, s.now())
}
