package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trivia-service/internal/domain"
)

// Collection is the collection results are written to.
const Collection = "trivia_results"

// ResultStore persists trivia results as documents keyed by result id.
type ResultStore struct {
	col *mongo.Collection
}

func NewResultStore(db *mongo.Database) *ResultStore {
	return &ResultStore{col: db.Collection(Collection)}
}

// EnsureIndexes creates the ranking and per-user indexes.
func (s *ResultStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "score", Value: -1}, {Key: "played_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create result indexes: %w", err)
	}
	return nil
}

// Save inserts result. A duplicate id means an earlier attempt already stored it.
func (s *ResultStore) Save(ctx context.Context, result domain.Result) error {
	_, err := s.col.InsertOne(ctx, result)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// All returns every stored result, best first. Documents missing the correct/wrong counts decode as zero.
func (s *ResultStore) All(ctx context.Context) ([]domain.Result, error) {
	opts := options.Find().SetSort(bson.D{{Key: "score", Value: -1}, {Key: "played_at", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find results: %w", err)
	}
	defer cur.Close(ctx)

	var results []domain.Result
	for cur.Next(ctx) {
		var r domain.Result
		if err := cur.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		results = append(results, r)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return results, nil
}
