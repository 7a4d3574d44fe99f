package repository

import (
	"context"
	"fmt"

	"github.com/AriMathi1/Fitness-app-server/models"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

type DynamoClassRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoClassRepository(client DynamoAPI, table string) *DynamoClassRepository {
	return &DynamoClassRepository{client: client, table: table}
}

type ddbClass struct {
	ClassID   string `dynamodbav:"class_id"`
	TrainerID string `dynamodbav:"trainer_id"`
	Title     string `dynamodbav:"title"`
	Duration  int    `dynamodbav:"duration"`
}

func (r *DynamoClassRepository) GetByID(ctx context.Context, id string) (*models.Class, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"class_id": id})
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

	var dc ddbClass
	if err := attributevalue.UnmarshalMap(out.Item, &dc); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	price, err := priceFromAttribute(out.Item["price"])
	if err != nil {
		return nil, fmt.Errorf("class %s price: %w", id, err)
	}
	return &models.Class{
		ID:        dc.ClassID,
		TrainerID: dc.TrainerID,
		Title:     dc.Title,
		Price:     price,
		Duration:  dc.Duration,
	}, nil
}

// priceFromAttribute reads a number or numeric string without going through float64.
func priceFromAttribute(av types.AttributeValue) (decimal.Decimal, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		return decimal.NewFromString(v.Value)
	case *types.AttributeValueMemberS:
		return decimal.NewFromString(v.Value)
	case nil:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported price attribute %T", av)
	}
}
