package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AriMathi1/Fitness-app-server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoBookingRepository struct {
	collection *mongo.Collection
}

func NewMongoBookingRepository(db *mongo.Database) *MongoBookingRepository {
	return &MongoBookingRepository{collection: db.Collection("bookings")}
}

type bookingDocument struct {
	ID            string    `bson:"_id"`
	UserID        string    `bson:"user_id"`
	TrainerID     string    `bson:"trainer_id"`
	ClassID       string    `bson:"class_id"`
	Date          string    `bson:"date"`
	Time          string    `bson:"time"`
	Status        string    `bson:"status"`
	PaymentStatus string    `bson:"payment_status"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d *bookingDocument) toModel() *models.Booking {
	return &models.Booking{
		ID:            d.ID,
		UserID:        d.UserID,
		TrainerID:     d.TrainerID,
		ClassID:       d.ClassID,
		Date:          d.Date,
		Time:          d.Time,
		Status:        models.BookingStatus(d.Status),
		PaymentStatus: models.BookingPaymentStatus(d.PaymentStatus),
		UpdatedAt:     d.UpdatedAt,
	}
}

// idFilter matches an _id stored as the plain string or, when id is a valid
// hex ObjectId, as that ObjectId. Bookings and classes are owned by services
// that may key documents either way.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

func (r *MongoBookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var doc bookingDocument
	if err := r.collection.FindOne(ctx, idFilter(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoBookingRepository) UpdatePaymentState(ctx context.Context, id string, update models.BookingUpdate) error {
	set := bson.M{
		"payment_status": string(update.PaymentStatus),
		"updated_at":     time.Now().UTC(),
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}

	res, err := r.collection.UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
