package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AriMathi1/Fitness-app-server/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const completedPerBookingIndex = "uniq_completed_booking"

type MongoPaymentRepository struct {
	collection *mongo.Collection
}

func NewMongoPaymentRepository(db *mongo.Database) *MongoPaymentRepository {
	return &MongoPaymentRepository{collection: db.Collection("payments")}
}

type paymentDocument struct {
	ID            string               `bson:"_id"`
	UserID        string               `bson:"user_id"`
	BookingID     string               `bson:"booking_id"`
	Amount        primitive.Decimal128 `bson:"amount"`
	Currency      string               `bson:"currency"`
	Status        string               `bson:"status"`
	PaymentMethod string               `bson:"payment_method"`
	TransactionID string               `bson:"transaction_id"`
	ReceiptURL    string               `bson:"receipt_url,omitempty"`
	Notes         string               `bson:"notes,omitempty"`
	NoteKind      string               `bson:"note_kind,omitempty"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
	CompletedAt   *time.Time           `bson:"completed_at,omitempty"`
	FailedAt      *time.Time           `bson:"failed_at,omitempty"`
	RefundedAt    *time.Time           `bson:"refunded_at,omitempty"`
}

func toPaymentDocument(p *models.Payment) (*paymentDocument, error) {
	amount, err := primitive.ParseDecimal128(p.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("encode amount: %w", err)
	}
	doc := &paymentDocument{
		ID:            p.ID,
		UserID:        p.UserID,
		BookingID:     p.BookingID,
		Amount:        amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		PaymentMethod: p.PaymentMethod,
		TransactionID: p.TransactionID,
		ReceiptURL:    p.ReceiptURL,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		CompletedAt:   p.CompletedAt,
		FailedAt:      p.FailedAt,
		RefundedAt:    p.RefundedAt,
	}
	if p.Note != nil {
		doc.Notes = p.Note.Text
		doc.NoteKind = string(p.Note.Kind)
	}
	return doc, nil
}

func (d *paymentDocument) toModel() (*models.Payment, error) {
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	p := &models.Payment{
		ID:            d.ID,
		UserID:        d.UserID,
		BookingID:     d.BookingID,
		Amount:        amount,
		Currency:      d.Currency,
		Status:        models.PaymentStatus(d.Status),
		PaymentMethod: d.PaymentMethod,
		TransactionID: d.TransactionID,
		ReceiptURL:    d.ReceiptURL,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		CompletedAt:   d.CompletedAt,
		FailedAt:      d.FailedAt,
		RefundedAt:    d.RefundedAt,
	}
	if d.Notes != "" || d.NoteKind != "" {
		p.Note = &models.Note{Kind: models.NoteKind(d.NoteKind), Text: d.Notes}
	}
	return p, nil
}

// EnsureIndexes creates the lookup indexes and the partial unique index that
// allows a single completed payment per booking.
func (r *MongoPaymentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_transaction_id"),
		},
		{
			Keys: bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName(completedPerBookingIndex).
				SetPartialFilterExpression(bson.M{"status": string(models.PaymentCompleted)}),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create payment indexes: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	doc, err := toPaymentDocument(payment)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepository) findOne(ctx context.Context, filter bson.M) (*models.Payment, error) {
	var doc paymentDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return doc.toModel()
}

func (r *MongoPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	return r.findOne(ctx, bson.M{"transaction_id": transactionID})
}

func (r *MongoPaymentRepository) HasCompletedForBooking(ctx context.Context, bookingID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx,
		bson.M{"booking_id": bookingID, "status": string(models.PaymentCompleted)},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count completed payments: %w", err)
	}
	return count > 0, nil
}

func transitionSet(tr models.Transition) bson.M {
	set := bson.M{
		"status":     string(tr.To),
		"updated_at": tr.At,
	}
	switch tr.To {
	case models.PaymentCompleted:
		set["completed_at"] = tr.At
		if tr.ReceiptURL != "" {
			set["receipt_url"] = tr.ReceiptURL
		}
	case models.PaymentFailed:
		set["failed_at"] = tr.At
	case models.PaymentRefunded:
		set["refunded_at"] = tr.At
	}
	if tr.Note != nil {
		set["notes"] = tr.Note.Text
		set["note_kind"] = string(tr.Note.Kind)
	}
	return set
}

func (r *MongoPaymentRepository) ApplyTransition(ctx context.Context, id string, tr models.Transition) (*models.Payment, bool, error) {
	if !models.CanTransition(tr.From, tr.To) {
		return nil, false, fmt.Errorf("illegal transition %s -> %s", tr.From, tr.To)
	}

	filter := bson.M{"_id": id, "status": string(tr.From)}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc paymentDocument
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": transitionSet(tr)}, opts).Decode(&doc)
	switch {
	case err == nil:
		p, err := doc.toModel()
		return p, true, err
	case errors.Is(err, mongo.ErrNoDocuments):
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	case mongo.IsDuplicateKeyError(err):
		return nil, false, ErrCompletedExists
	default:
		return nil, false, fmt.Errorf("update payment status: %w", err)
	}
}

func (r *MongoPaymentRepository) SetNote(ctx context.Context, id string, status models.PaymentStatus, note models.Note) (*models.Payment, error) {
	filter := bson.M{"_id": id, "status": string(status)}
	update := bson.M{"$set": bson.M{
		"notes":      note.Text,
		"note_kind":  string(note.Kind),
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc paymentDocument
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update payment note: %w", err)
	}
	return doc.toModel()
}

func (r *MongoPaymentRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.Payment, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find payments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []paymentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode payments: %w", err)
	}

	payments := make([]models.Payment, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, *p)
	}
	return payments, total, nil
}
