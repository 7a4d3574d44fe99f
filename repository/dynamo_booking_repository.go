package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AriMathi1/Fitness-app-server/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoBookingRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoBookingRepository(client DynamoAPI, table string) *DynamoBookingRepository {
	return &DynamoBookingRepository{client: client, table: table}
}

type ddbBooking struct {
	BookingID     string `dynamodbav:"booking_id"`
	UserID        string `dynamodbav:"user_id"`
	TrainerID     string `dynamodbav:"trainer_id"`
	ClassID       string `dynamodbav:"class_id"`
	Date          string `dynamodbav:"date"`
	Time          string `dynamodbav:"time"`
	Status        string `dynamodbav:"status"`
	PaymentStatus string `dynamodbav:"payment_status"`
	UpdatedAt     string `dynamodbav:"updated_at"`
}

func (r *DynamoBookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"booking_id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &r.table, Key: key})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var db ddbBooking
	if err := attributevalue.UnmarshalMap(out.Item, &db); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	b := &models.Booking{
		ID:            db.BookingID,
		UserID:        db.UserID,
		TrainerID:     db.TrainerID,
		ClassID:       db.ClassID,
		Date:          db.Date,
		Time:          db.Time,
		Status:        models.BookingStatus(db.Status),
		PaymentStatus: models.BookingPaymentStatus(db.PaymentStatus),
	}
	if t, err := time.Parse(time.RFC3339Nano, db.UpdatedAt); err == nil {
		b.UpdatedAt = t
	}
	return b, nil
}

func (r *DynamoBookingRepository) UpdatePaymentState(ctx context.Context, id string, update models.BookingUpdate) error {
	key, err := attributevalue.MarshalMap(map[string]string{"booking_id": id})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	expr := "SET payment_status = :ps, updated_at = :now"
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":ps":  &types.AttributeValueMemberS{Value: string(update.PaymentStatus)},
		":now": &types.AttributeValueMemberS{Value: formatTime(time.Now())},
	}
	if update.Status != nil {
		expr += ", #status = :st"
		names["#status"] = "status"
		values[":st"] = &types.AttributeValueMemberS{Value: string(*update.Status)}
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 &r.table,
		Key:                       key,
		UpdateExpression:          &expr,
		ConditionExpression:       aws.String("attribute_exists(booking_id)"),
		ExpressionAttributeValues: values,
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("update booking: %w", err)
	}
	return nil
}
