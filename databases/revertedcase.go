package databases

// go generate: mockery --name RevertedCaseDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldverify/field-verify-api/models"
)

const revertedCaseName = "revertedCases"

// RevertedCaseDatabase contains the methods to use with the revertedCases collection
type RevertedCaseDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.RevertedCase, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.RevertedCase, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) error
}

type revertedCaseDatabase struct {
	db DatabaseHelper
}

// NewRevertedCaseDatabase initializes a new instance of reverted case database with the provided db connection
func NewRevertedCaseDatabase(db DatabaseHelper) RevertedCaseDatabase {
	return &revertedCaseDatabase{
		db: db,
	}
}

func (r *revertedCaseDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.RevertedCase, error) {
	rc := &models.RevertedCase{}
	err := r.db.Collection(revertedCaseName).FindOne(ctx, filter, opts...).Decode(&rc)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (r *revertedCaseDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.RevertedCase, error) {
	var reverted []models.RevertedCase
	cur := r.db.Collection(revertedCaseName).Find(ctx, filter, opts...)
	err := cur.Decode(&reverted)
	if err != nil {
		return nil, err
	}
	return reverted, nil
}

func (r *revertedCaseDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return r.db.Collection(revertedCaseName).InsertOne(ctx, document, opts...)
}

func (r *revertedCaseDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return r.db.Collection(revertedCaseName).DeleteOne(ctx, filter, opts...)
}
