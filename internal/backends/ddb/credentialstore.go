package ddb

import (
	"context"
	"errors"
	"sort"
	"wolff/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CredentialStore keeps bundles and resources in a single table:
// PK=CLIENT#<id>, SK=CRED#<service> or RES#<service>#<resource>.
type CredentialStore struct {
	table string
	cli   *dynamodb.Client
}

type credItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	types.CredentialBundle
}

type resourceItem struct {
	PK     string   `dynamodbav:"PK"`
	SK     string   `dynamodbav:"SK"`
	Values []string `dynamodbav:"values"`
}

func NewCredentialStore(ctx context.Context, table string, cli *dynamodb.Client) (*CredentialStore, error) {
	if err := createTableIfNotExists(ctx, cli, table); err != nil {
		return nil, types.Err(types.ErrStorage, err, "")
	}
	return &CredentialStore{table: table, cli: cli}, nil
}

// Close is a no-op: the DynamoDB client holds no connection that outlives a request.
func (s *CredentialStore) Close() error { return nil }

func (s *CredentialStore) Get(ctx context.Context, clientID, service string) (types.CredentialBundle, error) {
	item, err := s.getItem(ctx, pkClient(clientID), skCred(service))
	if err != nil {
		return types.CredentialBundle{}, err
	}
	if item == nil {
		return types.CredentialBundle{}, types.Err(types.ErrNoSuchCredential, nil, "%s/%s", clientID, service)
	}
	var ci credItem
	if err := attributevalue.UnmarshalMap(item, &ci); err != nil {
		return types.CredentialBundle{}, types.Err(types.ErrStorage, err, "")
	}
	if err := ci.CredentialBundle.Validate(); err != nil {
		return types.CredentialBundle{}, types.Err(types.ErrStorage, err, "%s/%s", clientID, service)
	}
	return ci.CredentialBundle, nil
}

func (s *CredentialStore) Put(ctx context.Context, clientID, service string, bundle types.CredentialBundle, overwrite bool) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(credItem{
		PK:               pkClient(clientID),
		SK:               skCred(service),
		CredentialBundle: bundle,
	})
	if err != nil {
		return err
	}
	in := &dynamodb.PutItemInput{TableName: &s.table, Item: item}
	if !overwrite {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	}
	if _, err := s.cli.PutItem(ctx, in); err != nil {
		var ccf *ddbTypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return types.Err(types.ErrAlreadyExists, nil, "%s/%s", clientID, service)
		}
		return types.Err(types.ErrStorage, err, "")
	}
	return nil
}

func (s *CredentialStore) ListClients(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	p := dynamodb.NewScanPaginator(s.cli, &dynamodb.ScanInput{
		TableName:        &s.table,
		FilterExpression: aws.String("begins_with(PK, :pk)"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: SClient + "#"},
		},
		ProjectionExpression: aws.String("PK"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, types.Err(types.ErrStorage, err, "")
		}
		for _, item := range page.Items {
			var key struct {
				PK string `dynamodbav:"PK"`
			}
			if err := attributevalue.UnmarshalMap(item, &key); err != nil {
				return nil, types.Err(types.ErrStorage, err, "")
			}
			id, err := parseClientID(key.PK)
			if err != nil {
				continue
			}
			seen[id] = struct{}{}
		}
	}
	clients := make([]string, 0, len(seen))
	for id := range seen {
		clients = append(clients, id)
	}
	sort.Strings(clients)
	return clients, nil
}

func (s *CredentialStore) GetResource(ctx context.Context, clientID, service, resource string) ([]string, error) {
	item, err := s.getItem(ctx, pkClient(clientID), skResource(service, resource))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, types.Err(types.ErrNotFound, nil, "resource %s/%s/%s", clientID, service, resource)
	}
	var ri resourceItem
	if err := attributevalue.UnmarshalMap(item, &ri); err != nil {
		return nil, types.Err(types.ErrStorage, err, "")
	}
	return ri.Values, nil
}

func (s *CredentialStore) PutResource(ctx context.Context, clientID, service, resource string, values []string) error {
	if resource == types.ResourceOAuth1 {
		return types.Err(types.ErrInvalidParameter, nil, "resource name %q is reserved", resource)
	}
	item, err := attributevalue.MarshalMap(resourceItem{
		PK:     pkClient(clientID),
		SK:     skResource(service, resource),
		Values: values,
	})
	if err != nil {
		return err
	}
	if _, err := s.cli.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.table, Item: item}); err != nil {
		return types.Err(types.ErrStorage, err, "")
	}
	return nil
}

func (s *CredentialStore) getItem(ctx context.Context, pk, sk string) (map[string]ddbTypes.AttributeValue, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pk},
			"SK": &ddbTypes.AttributeValueMemberS{Value: sk},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, types.Err(types.ErrStorage, err, "")
	}
	return out.Item, nil
}
