package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const tableReadyTimeout = 2 * time.Minute

type tableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type DynamoDBService struct {
	client tableAPI
}

func NewDynamoDBService(client tableAPI) *DynamoDBService {
	return &DynamoDBService{client: client}
}

// CreateHighScoreTable creates the per-mode high score table and waits for
// it to become active. An existing table is left alone.
func (s *DynamoDBService) CreateHighScoreTable(ctx context.Context, table string) (bool, error) {
	_, err := s.client.CreateTable(ctx, HighScoreTableSchema(table))
	if err != nil {
		var exists *types.ResourceInUseException
		if errors.As(err, &exists) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, tableReadyTimeout); err != nil {
		return true, fmt.Errorf("table %s not ready: %w", table, err)
	}
	return true, nil
}

// HighScoreTableSchema describes a table keyed by mode name. Scores and
// timestamps are plain attributes, not part of the key.
func HighScoreTableSchema(table string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("mode"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("mode"),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}
