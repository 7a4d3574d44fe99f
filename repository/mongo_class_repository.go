package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/AriMathi1/Fitness-app-server/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoClassRepository struct {
	collection *mongo.Collection
}

func NewMongoClassRepository(db *mongo.Database) *MongoClassRepository {
	return &MongoClassRepository{collection: db.Collection("classes")}
}

type classDocument struct {
	ID        string        `bson:"_id"`
	TrainerID string        `bson:"trainer_id"`
	Title     string        `bson:"title"`
	Price     bson.RawValue `bson:"price"`
	Duration  int           `bson:"duration"`
}

func (r *MongoClassRepository) GetByID(ctx context.Context, id string) (*models.Class, error) {
	var doc classDocument
	if err := r.collection.FindOne(ctx, idFilter(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find class: %w", err)
	}

	price, err := decimalFromRaw(doc.Price)
	if err != nil {
		return nil, fmt.Errorf("class %s price: %w", id, err)
	}
	return &models.Class{
		ID:        doc.ID,
		TrainerID: doc.TrainerID,
		Title:     doc.Title,
		Price:     price,
		Duration:  doc.Duration,
	}, nil
}

// decimalFromRaw accepts the numeric encodings other services write for prices.
func decimalFromRaw(v bson.RawValue) (decimal.Decimal, error) {
	switch v.Type {
	case bsontype.Decimal128:
		return decimal.NewFromString(v.Decimal128().String())
	case bsontype.Double:
		return decimal.NewFromFloat(v.Double()), nil
	case bsontype.Int32:
		return decimal.NewFromInt32(v.Int32()), nil
	case bsontype.Int64:
		return decimal.NewFromInt(v.Int64()), nil
	case bsontype.String:
		return decimal.NewFromString(v.StringValue())
	case 0, bsontype.Null:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported price type %s", v.Type)
	}
}
