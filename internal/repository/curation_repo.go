package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"huntcurator/internal/model"
)

// CurationRepo persists saved review cycles
type CurationRepo interface {
	Save(ctx context.Context, req *model.PersistRequest) error
	GetByCycle(ctx context.Context, cycleID string) (*model.PersistRequest, error)
	ListByCurator(ctx context.Context, curatorID string) ([]*model.PersistRequest, error)
	ListBySession(ctx context.Context, sessionID string) ([]*model.PersistRequest, error)
}

type curationRepo struct {
	collection *mongo.Collection
}

// NewCurationRepo creates a new curation repository
func NewCurationRepo(db *mongo.Database) CurationRepo {
	return &curationRepo{
		collection: db.Collection("curations"),
	}
}

// Save upserts by cycle id so that a retried save cannot duplicate a cycle
func (r *curationRepo) Save(ctx context.Context, req *model.PersistRequest) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": req.CycleID}, req, opts)
	return err
}

func (r *curationRepo) GetByCycle(ctx context.Context, cycleID string) (*model.PersistRequest, error) {
	var req model.PersistRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": cycleID}).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *curationRepo) ListByCurator(ctx context.Context, curatorID string) ([]*model.PersistRequest, error) {
	return r.find(ctx, bson.M{"curatorId": curatorID})
}

func (r *curationRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.PersistRequest, error) {
	return r.find(ctx, bson.M{"sessionId": sessionID})
}

func (r *curationRepo) find(ctx context.Context, filter bson.M) ([]*model.PersistRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "savedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*model.PersistRequest
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
