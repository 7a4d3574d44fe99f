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
	"github.com/shopspring/decimal"
)

// Secondary indexes expected on the payments table.
const (
	TransactionIndex = "transaction_id-index"
	BookingIndex     = "booking_id-index"
	UserIndex        = "user_id-created_at-index"
)

// DynamoAPI is the subset of the DynamoDB client the repositories use.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoPaymentRepository stores payments in a table keyed by payment_id.
// Unlike the Mongo store it has no storage-level guard against a second
// completed payment per booking; the service-level check is the only one.
type DynamoPaymentRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoPaymentRepository(client DynamoAPI, table string) *DynamoPaymentRepository {
	return &DynamoPaymentRepository{client: client, table: table}
}

type ddbPayment struct {
	PaymentID     string  `dynamodbav:"payment_id"`
	UserID        string  `dynamodbav:"user_id"`
	BookingID     string  `dynamodbav:"booking_id"`
	Amount        string  `dynamodbav:"amount"`
	Currency      string  `dynamodbav:"currency"`
	Status        string  `dynamodbav:"status"`
	PaymentMethod string  `dynamodbav:"payment_method"`
	TransactionID string  `dynamodbav:"transaction_id"`
	ReceiptURL    string  `dynamodbav:"receipt_url,omitempty"`
	Notes         string  `dynamodbav:"notes,omitempty"`
	NoteKind      string  `dynamodbav:"note_kind,omitempty"`
	CreatedAt     string  `dynamodbav:"created_at"`
	UpdatedAt     string  `dynamodbav:"updated_at"`
	CompletedAt   *string `dynamodbav:"completed_at,omitempty"`
	FailedAt      *string `dynamodbav:"failed_at,omitempty"`
	RefundedAt    *string `dynamodbav:"refunded_at,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}

func toDynamoPayment(p *models.Payment) ddbPayment {
	dp := ddbPayment{
		PaymentID:     p.ID,
		UserID:        p.UserID,
		BookingID:     p.BookingID,
		Amount:        p.Amount.String(),
		Currency:      p.Currency,
		Status:        string(p.Status),
		PaymentMethod: p.PaymentMethod,
		TransactionID: p.TransactionID,
		ReceiptURL:    p.ReceiptURL,
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
		CompletedAt:   formatTimePtr(p.CompletedAt),
		FailedAt:      formatTimePtr(p.FailedAt),
		RefundedAt:    formatTimePtr(p.RefundedAt),
	}
	if p.Note != nil {
		dp.Notes = p.Note.Text
		dp.NoteKind = string(p.Note.Kind)
	}
	return dp
}

func (dp ddbPayment) toModel() (*models.Payment, error) {
	amount, err := decimal.NewFromString(dp.Amount)
	if err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	p := &models.Payment{
		ID:            dp.PaymentID,
		UserID:        dp.UserID,
		BookingID:     dp.BookingID,
		Amount:        amount,
		Currency:      dp.Currency,
		Status:        models.PaymentStatus(dp.Status),
		PaymentMethod: dp.PaymentMethod,
		TransactionID: dp.TransactionID,
		ReceiptURL:    dp.ReceiptURL,
		CompletedAt:   parseTimePtr(dp.CompletedAt),
		FailedAt:      parseTimePtr(dp.FailedAt),
		RefundedAt:    parseTimePtr(dp.RefundedAt),
	}
	if t, err := time.Parse(time.RFC3339Nano, dp.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, dp.UpdatedAt); err == nil {
		p.UpdatedAt = t
	}
	if dp.Notes != "" || dp.NoteKind != "" {
		p.Note = &models.Note{Kind: models.NoteKind(dp.NoteKind), Text: dp.Notes}
	}
	return p, nil
}

func unmarshalPayment(item map[string]types.AttributeValue) (*models.Payment, error) {
	var dp ddbPayment
	if err := attributevalue.UnmarshalMap(item, &dp); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return dp.toModel()
}

func (r *DynamoPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	item, err := attributevalue.MarshalMap(toDynamoPayment(payment))
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(payment_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (r *DynamoPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"payment_id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &r.table,
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return unmarshalPayment(out.Item)
}

func (r *DynamoPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &r.table,
		IndexName:              aws.String(TransactionIndex),
		KeyConditionExpression: aws.String("transaction_id = :tx"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tx": &types.AttributeValueMemberS{Value: transactionID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query by transaction id: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrNotFound
	}
	// The index projection may be partial; read the full item from the table.
	p, err := unmarshalPayment(out.Items[0])
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, p.ID)
}

func (r *DynamoPaymentRepository) HasCompletedForBooking(ctx context.Context, bookingID string) (bool, error) {
	input := &dynamodb.QueryInput{
		TableName:              &r.table,
		IndexName:              aws.String(BookingIndex),
		KeyConditionExpression: aws.String("booking_id = :b"),
		FilterExpression:       aws.String("#status = :completed"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b":         &types.AttributeValueMemberS{Value: bookingID},
			":completed": &types.AttributeValueMemberS{Value: string(models.PaymentCompleted)},
		},
		Select: types.SelectCount,
	}
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("query completed payments: %w", err)
		}
		if page.Count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *DynamoPaymentRepository) ApplyTransition(ctx context.Context, id string, tr models.Transition) (*models.Payment, bool, error) {
	if !models.CanTransition(tr.From, tr.To) {
		return nil, false, fmt.Errorf("illegal transition %s -> %s", tr.From, tr.To)
	}

	key, err := attributevalue.MarshalMap(map[string]string{"payment_id": id})
	if err != nil {
		return nil, false, fmt.Errorf("marshal key: %w", err)
	}

	at := formatTime(tr.At)
	expr := "SET #status = :to, updated_at = :now"
	values := map[string]types.AttributeValue{
		":to":   &types.AttributeValueMemberS{Value: string(tr.To)},
		":from": &types.AttributeValueMemberS{Value: string(tr.From)},
		":now":  &types.AttributeValueMemberS{Value: at},
	}
	switch tr.To {
	case models.PaymentCompleted:
		expr += ", completed_at = :now"
		if tr.ReceiptURL != "" {
			expr += ", receipt_url = :receipt"
			values[":receipt"] = &types.AttributeValueMemberS{Value: tr.ReceiptURL}
		}
	case models.PaymentFailed:
		expr += ", failed_at = :now"
	case models.PaymentRefunded:
		expr += ", refunded_at = :now"
	}
	if tr.Note != nil {
		expr += ", notes = :notes, note_kind = :kind"
		values[":notes"] = &types.AttributeValueMemberS{Value: tr.Note.Text}
		values[":kind"] = &types.AttributeValueMemberS{Value: string(tr.Note.Kind)}
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &r.table,
		Key:                       key,
		UpdateExpression:          &expr,
		ConditionExpression:       aws.String("attribute_exists(payment_id) AND #status = :from"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			current, err := r.GetByID(ctx, id)
			if err != nil {
				return nil, false, err
			}
			return current, false, nil
		}
		return nil, false, fmt.Errorf("update payment status: %w", err)
	}

	p, err := unmarshalPayment(out.Attributes)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (r *DynamoPaymentRepository) SetNote(ctx context.Context, id string, status models.PaymentStatus, note models.Note) (*models.Payment, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"payment_id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &r.table,
		Key:                 key,
		UpdateExpression:    aws.String("SET notes = :notes, note_kind = :kind, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(payment_id) AND #status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":notes":  &types.AttributeValueMemberS{Value: note.Text},
			":kind":   &types.AttributeValueMemberS{Value: string(note.Kind)},
			":now":    &types.AttributeValueMemberS{Value: formatTime(time.Now())},
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update payment note: %w", err)
	}
	return unmarshalPayment(out.Attributes)
}

func (r *DynamoPaymentRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.Payment, int64, error) {
	input := &dynamodb.QueryInput{
		TableName:              &r.table,
		IndexName:              aws.String(UserIndex),
		KeyConditionExpression: aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}

	skip := (page - 1) * limit
	var total int64
	payments := make([]models.Payment, 0, limit)

	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("query payments: %w", err)
		}
		for _, item := range out.Items {
			idx := int(total)
			total++
			if idx < skip || len(payments) >= limit {
				continue
			}
			p, err := unmarshalPayment(item)
			if err != nil {
				return nil, 0, err
			}
			payments = append(payments, *p)
		}
	}
	return payments, total, nil
}
