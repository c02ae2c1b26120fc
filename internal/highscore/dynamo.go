package highscore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"review-rush-go/internal/game/modes"
)

type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// highScoreItem is one row of the high score table, keyed by mode.
type highScoreItem struct {
	Mode      string    `dynamodbav:"mode"`
	Score     int       `dynamodbav:"score"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// DynamoStore keeps high scores in a DynamoDB table.
type DynamoStore struct {
	client dynamoAPI
	table  string
	hub    *hub
	now    func() time.Time
}

func NewDynamoStore(client dynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table, hub: newHub(), now: time.Now}
}

func (s *DynamoStore) Observe(ctx context.Context, mode modes.GameMode) (<-chan int, func(), error) {
	return s.hub.observe(mode, func() (int, error) {
		return s.get(ctx, mode)
	})
}

// SaveIfBetter relies on a conditional put, so a lower score never replaces
// a higher one even across processes.
func (s *DynamoStore) SaveIfBetter(ctx context.Context, mode modes.GameMode, score int) (bool, error) {
	if score <= 0 {
		return false, nil
	}

	item, err := attributevalue.MarshalMap(highScoreItem{
		Mode:      string(mode),
		Score:     score,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal high score: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#m) OR #s < :score"),
		ExpressionAttributeNames: map[string]string{
			"#m": "mode",
			"#s": "score",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":score": &types.AttributeValueMemberN{Value: strconv.Itoa(score)},
		},
	})
	if err != nil {
		var rejected *types.ConditionalCheckFailedException
		if errors.As(err, &rejected) {
			return false, nil
		}
		return false, fmt.Errorf("failed to save high score: %w", err)
	}

	s.hub.publish(mode, score)
	return true, nil
}

func (s *DynamoStore) get(ctx context.Context, mode modes.GameMode) (int, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"mode": &types.AttributeValueMemberS{Value: string(mode)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get high score: %w", err)
	}
	if len(out.Item) == 0 {
		return 0, nil
	}

	var item highScoreItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return 0, fmt.Errorf("failed to unmarshal high score: %w", err)
	}
	return item.Score, nil
}
