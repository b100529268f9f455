package backends

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"wolff/internal/backends/ddb"
	"wolff/internal/backends/file"
	"wolff/internal/backends/postgres"
	"wolff/internal/backends/sqlite"
	"wolff/internal/config"
	"wolff/internal/ports"
	"wolff/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	redisbackend "wolff/internal/backends/redis"
)

const AmazonRootCA1PEM = `-----BEGIN CERTIFICATE-----
MIIDQTCCAimgAwIBAgITBmyfz5m/jAo54vB4ikPmljZbyjANBgkqhkiG9w0BAQsF
ADA5MQswCQYDVQQGEwJVUzEPMA0GA1UEChMGQW1hem9uMRkwFwYDVQQDExBBbWF6
b24gUm9vdCBDQSAxMB4XDTE1MDUyNjAwMDAwMFoXDTM4MDExNzAwMDAwMFowOTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoTBkFtYXpvbjEZMBcGA1UEAxMQQW1hem9uIFJv
b3QgQ0EgMTCCASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEBALJ4gHHKeNXj
ca9HgFB0fW7Y14h29Jlo91ghYPl0hAEvrAIthtOgQ3pOsqTQNroBvo3bSMgHFzZM
9O6II8c+6zf1tRn4SWiw3te5djgdYZ6k/oI2peVKVuRF4fn9tBb6dNqcmzU5L/qw
IFAGbHrQgLKm+a/sRxmPUDgH3KKHOVj4utWp+UhnMJbulHheb4mjUcAwhmahRWa6
VOujw5H5SNz/0egwLX0tdHA114gk957EWW67c4cX8jJGKLhD+rcdqsq08p8kDi1L
93FcXmn/6pUCyziKrlA4b9v7LWIbxcceVOF34GfID5yHI9Y/QCB/IIDEgEw+OyQm
jgSubJrIqg0CAwEAAaNCMEAwDwYDVR0TAQH/BAUwAwEB/zAOBgNVHQ8BAf8EBAMC
AYYwHQYDVR0OBBYEFIQYzIU07LwMlJQuCFmcx7IQTgoIMA0GCSqGSIb3DQEBCwUA
A4IBAQCY8jdaQZChGsV2USggNiMOruYou6r4lK5IpDB/G/wkjUu0yKGX9rbxenDI
U5PMCCjjmCXPI6T53iHTfIUJrU6adTrCC2qJeHZERxhlbI1Bjjt/msv0tadQ1wUs
N+gDS63pYaACbvXy8MWy7Vu33PqUXHeeE6V/Uq2V8viTO96LXFvKWlJbYK8U90vv
o/ufQJVtMVT8QtPHRh8jrdkPSHCa2XV4cdFyQzR1bldZwgJcJmApzyMZFo6IQ6XU
5MsI+yMRQ+hDKXJioaldXgjUkK642M4UwtBV8ob2xJNDd2ZhwLnoQdeXeGADbkpy
rqXRfboQnoZsG4q5WTP468SQvvG5
-----END CERTIFICATE-----`

// CredentialBackendFromConfig constructs the credential store selected by
// WOLFF_CREDENTIAL_BACKEND: "file" (default), "redis" or "ddb".
func CredentialBackendFromConfig(ctx context.Context, cfg config.Config) (store ports.CredentialStore, err error) {
	switch cfg.Credentials.Backend {
	case config.BackendRedis:
		var redisClient *redis.Client
		redisClient, err = redisClientFromConfig(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		store = redisbackend.NewCredentialStore(redisClient)

	case config.BackendDDB:
		var ddbClient *dynamodb.Client
		ddbClient, err = ddbClientFromConfig(ctx, cfg.DDB)
		if err != nil {
			return nil, err
		}
		var ddbStore *ddb.CredentialStore
		if ddbStore, err = ddb.NewCredentialStore(ctx, cfg.DDB.Table, ddbClient); err != nil {
			return nil, err
		}
		store = ddbStore

	case config.BackendFile, "":
		var fileStore *file.CredentialStore
		if fileStore, err = file.NewCredentialStore(cfg.Credentials.ClientsDir); err != nil {
			return nil, err
		}
		store = fileStore

	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "credential backend %q", cfg.Credentials.Backend)
	}
	if err == nil {
		log.WithField("backend", cfg.Credentials.Backend).Debug("credential store ready")
	}
	return
}

// RecordBackendFromConfig constructs the record store selected by WOLFF_RECORD_BACKEND:
// "sqlite" (default) or "postgres".
func RecordBackendFromConfig(ctx context.Context, cfg config.Config) (ports.RecordStore, error) {
	switch cfg.Records.Backend {
	case config.BackendPostgres:
		store, err := postgres.NewRecordStore(ctx, cfg.Records.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendSQLite, "":
		store, err := sqlite.NewRecordStore(cfg.Records.DBPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "record backend %q", cfg.Records.Backend)
	}
}

// ddbClientFromConfig creates a DynamoDB client. A non-empty endpoint switches to static
// local credentials.
func ddbClientFromConfig(ctx context.Context, cfg config.DDBConfig) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			// This is used for testing only locally
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			if o.Region == "" {
				o.Region = "us-east-1"
			}
			o.Credentials = credentials.NewStaticCredentialsProvider("x", "x", "")
		}
	})
	return ddbClient, nil
}

// redisClientFromConfig creates and pings a Redis client.
func redisClientFromConfig(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var tlsConfig *tls.Config
	if cfg.TLS {
		// Create a CA certificate pool and add our CA certificate
		caCerts := x509.NewCertPool()
		if !caCerts.AppendCertsFromPEM([]byte(AmazonRootCA1PEM)) {
			return nil, fmt.Errorf("failed to retrieve CA certificate")
		}
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    caCerts,
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:      fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Username:  cfg.User,
		Password:  cfg.Pass,
		DB:        cfg.DB,
		TLSConfig: tlsConfig,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return redisClient, nil
}
