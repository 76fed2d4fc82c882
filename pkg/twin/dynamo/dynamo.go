// Package dynamo provides a DynamoDB-backed twin store. Twins live in one
// table keyed by twinId; relationships in another keyed by (twinId, userId).
// Records are stored as JSON document attributes.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/twinfold/contextd/pkg/twin"
)

type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Store implements twin.Store over DynamoDB tables.
type Store struct {
	api               dynamoAPI
	twinTable         string
	relationshipTable string
}

// NewStore creates a new DynamoDB-backed twin store.
func NewStore(api dynamoAPI, twinTable, relationshipTable string) (*Store, error) {
	if api == nil {
		return nil, errors.New("dynamo: api must not be nil")
	}
	if strings.TrimSpace(twinTable) == "" || strings.TrimSpace(relationshipTable) == "" {
		return nil, errors.New("dynamo: table names must not be empty")
	}
	return &Store{api: api, twinTable: twinTable, relationshipTable: relationshipTable}, nil
}

// Twin returns the persona record for twinID.
func (s *Store) Twin(ctx context.Context, twinID string) (*twin.Twin, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.twinTable),
		Key: map[string]types.AttributeValue{
			"twinId": &types.AttributeValueMemberS{Value: twinID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: Twin get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, twin.NotFoundError{Kind: "twin", Key: twinID}
	}

	var t twin.Twin
	if err := decodeBody(out.Item, &t); err != nil {
		return nil, fmt.Errorf("dynamo: Twin decode: %w", err)
	}
	return &t, nil
}

// Relationship returns the relationship record for (twinID, userID).
func (s *Store) Relationship(ctx context.Context, twinID, userID string) (*twin.Relationship, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.relationshipTable),
		Key: map[string]types.AttributeValue{
			"twinId": &types.AttributeValueMemberS{Value: twinID},
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo: Relationship get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, twin.NotFoundError{Kind: "relationship", Key: twinID + "/" + userID}
	}

	var r twin.Relationship
	if err := decodeBody(out.Item, &r); err != nil {
		return nil, fmt.Errorf("dynamo: Relationship decode: %w", err)
	}
	return &r, nil
}

func decodeBody(item map[string]types.AttributeValue, out any) error {
	bodyAttr, ok := item["body"].(*types.AttributeValueMemberS)
	if !ok {
		return errors.New("item missing body attribute")
	}
	return json.Unmarshal([]byte(bodyAttr.Value), out)
}
