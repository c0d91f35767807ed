package databases

// go generate: mockery --name MemberDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldverify/field-verify-api/models"
)

const memberName = "users"

// MemberDatabase contains the methods to use with the users collection
type MemberDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Member, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Member, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type memberDatabase struct {
	db DatabaseHelper
}

// NewMemberDatabase initializes a new instance of member database with the provided db connection
func NewMemberDatabase(db DatabaseHelper) MemberDatabase {
	return &memberDatabase{
		db: db,
	}
}

func (m *memberDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Member, error) {
	member := &models.Member{}
	err := m.db.Collection(memberName).FindOne(ctx, filter, opts...).Decode(&member)
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (m *memberDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Member, error) {
	var members []models.Member
	cur := m.db.Collection(memberName).Find(ctx, filter, opts...)
	err := cur.Decode(&members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (m *memberDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return m.db.Collection(memberName).InsertOne(ctx, document, opts...)
}

func (m *memberDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := m.db.Collection(memberName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount(), nil
}

func (m *memberDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return m.db.Collection(memberName).CountDocuments(ctx, filter, opts...)
}
