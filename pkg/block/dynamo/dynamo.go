// Package dynamo provides a DynamoDB-backed block store. The table uses
// conversationId as partition key and blockId as numeric sort key, with the
// block body stored as a JSON document attribute. A conditional put on the
// composite key supplies the append conflict guard.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/twinfold/contextd/pkg/block"
)

// dynamoAPI is the minimal DynamoDB interface required by Store.
// Defined here for testability.
type dynamoAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store implements block.Store over a DynamoDB table.
type Store struct {
	api       dynamoAPI
	tableName string
}

// NewStore creates a new DynamoDB-backed block store.
func NewStore(api dynamoAPI, tableName string) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamo: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamo: table name must not be empty")
	}
	return &Store{api: api, tableName: tableName}, nil
}

// Latest queries the newest block for the conversation by reading the sort
// key in descending order with a limit of one.
func (s *Store) Latest(ctx context.Context, conversationID string) (*block.Block, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("conversationId = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: Latest query: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, block.ErrNotFound
	}

	return itemToBlock(out.Items[0])
}

// Append writes a new block, conditional on the (conversationId, blockId)
// key not existing.
func (s *Store) Append(ctx context.Context, b *block.Block) error {
	if b == nil {
		return errors.New("dynamo: cannot append nil block")
	}

	item, err := blockToItem(b)
	if err != nil {
		return fmt.Errorf("dynamo: Append marshal: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(conversationId) AND attribute_not_exists(blockId)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("%w: conversation %s block %d", block.ErrConflict, b.ConversationID, b.BlockID)
		}
		return fmt.Errorf("dynamo: Append put item: %w", err)
	}

	return nil
}

// Close releases store resources. The underlying SDK client is owned by the
// enclosing service.
func (s *Store) Close() error {
	return nil
}

func blockToItem(b *block.Block) (map[string]types.AttributeValue, error) {
	body, err := marshalBlock(b)
	if err != nil {
		return nil, err
	}

	return map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberS{Value: b.ConversationID},
		"blockId":        &types.AttributeValueMemberN{Value: strconv.Itoa(b.BlockID)},
		"body":           &types.AttributeValueMemberS{Value: body},
	}, nil
}

func itemToBlock(item map[string]types.AttributeValue) (*block.Block, error) {
	bodyAttr, ok := item["body"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("dynamo: item missing body attribute")
	}

	return unmarshalBlock(bodyAttr.Value)
}
