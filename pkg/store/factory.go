package store

import (
	"fmt"
	"strings"

	"github.com/nimburion/docquery/pkg/config"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/repository/document"
	"github.com/nimburion/docquery/pkg/store/dynamodb"
	"github.com/nimburion/docquery/pkg/store/mongodb"
)

// Backend is an opened document store: the executor serving queries and the
// adapter owning its connection. Adapter is nil for the in-memory store.
type Backend struct {
	Type     string
	Executor document.Executor
	Adapter  Adapter
}

// Close releases the adapter, if any.
func (b *Backend) Close() error {
	if b == nil || b.Adapter == nil {
		return nil
	}
	return b.Adapter.Close()
}

// Open connects to the store named by cfg.Type and returns its executor.
func Open(cfg config.DatabaseConfig, log logger.Logger) (*Backend, error) {
	dbType := strings.ToLower(strings.TrimSpace(cfg.Type))
	switch dbType {
	case config.DatabaseTypeMongoDB:
		adapter, err := newMongoDBAdapter(cfg, log)
		if err != nil {
			return nil, err
		}
		exec, err := document.NewMongoDBExecutor(adapter)
		if err != nil {
			_ = adapter.Close()
			return nil, err
		}
		return &Backend{Type: dbType, Executor: exec, Adapter: adapter}, nil

	case config.DatabaseTypeDynamoDB:
		adapter, err := newDynamoDBAdapter(cfg, log)
		if err != nil {
			return nil, err
		}
		exec, err := document.NewDynamoDBExecutor(adapter)
		if err != nil {
			_ = adapter.Close()
			return nil, err
		}
		return &Backend{Type: dbType, Executor: exec, Adapter: adapter}, nil

	case config.DatabaseTypeMemory:
		log.Warn("using in-memory document store; data is lost on exit")
		return &Backend{Type: dbType, Executor: document.NewMemoryExecutor()}, nil

	default:
		return nil, unsupportedType(cfg.Type)
	}
}

// NewStorageAdapter connects only the adapter, for health checks. The
// in-memory store has none and yields nil.
func NewStorageAdapter(cfg config.DatabaseConfig, log logger.Logger) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.DatabaseTypeMongoDB:
		adapter, err := newMongoDBAdapter(cfg, log)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case config.DatabaseTypeDynamoDB:
		adapter, err := newDynamoDBAdapter(cfg, log)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case config.DatabaseTypeMemory:
		return nil, nil
	default:
		return nil, unsupportedType(cfg.Type)
	}
}

func newMongoDBAdapter(cfg config.DatabaseConfig, log logger.Logger) (*mongodb.Adapter, error) {
	return mongodb.NewAdapter(mongodb.Config{
		URL:              cfg.URL,
		Database:         cfg.DatabaseName,
		ConnectTimeout:   cfg.ConnectTimeout,
		OperationTimeout: cfg.QueryTimeout,
	}, log)
}

func newDynamoDBAdapter(cfg config.DatabaseConfig, log logger.Logger) (*dynamodb.Adapter, error) {
	return dynamodb.NewAdapter(dynamodb.Config{
		Region:           cfg.Region,
		Endpoint:         cfg.Endpoint,
		AccessKeyID:      cfg.AccessKeyID,
		SecretAccessKey:  cfg.SecretAccessKey,
		SessionToken:     cfg.SessionToken,
		OperationTimeout: cfg.QueryTimeout,
	}, log)
}

func unsupportedType(t string) error {
	return fmt.Errorf("unsupported database.type %q (supported: mongodb, dynamodb, memory)", t)
}
