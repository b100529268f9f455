package ddb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	SClient   = "CLIENT"
	SCred     = "CRED"
	SResource = "RES"
)

func pkClient(id string) string                  { return fmt.Sprintf("%s#%s", SClient, id) }
func skCred(service string) string               { return fmt.Sprintf("%s#%s", SCred, service) }
func skResource(service, resource string) string { return fmt.Sprintf("%s#%s#%s", SResource, service, resource) }

func parseClientID(pk string) (string, error) {
	id, ok := strings.CutPrefix(pk, SClient+"#")
	if !ok || id == "" {
		return "", fmt.Errorf("not a client key: %q", pk)
	}
	return id, nil
}

func createTableIfNotExists(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	if err == nil {
		log.WithField("table", table).Info("created dynamodb table")
	}
	return nil
}
