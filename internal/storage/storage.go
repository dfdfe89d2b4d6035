package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"whisperchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// AuditChannel is the Redis Pub/Sub channel audit records are fanned out on.
const AuditChannel = "whisperchat:audit"

// Storage is the persistence surface used by the audit sinks and the admin CLI.
type Storage interface {
	SaveAuditRecord(ctx context.Context, rec *models.AuditRecord) error
	PublishAuditRecord(ctx context.Context, rec models.AuditRecord) error
	ListAuditRecords(ctx context.Context, filter AuditFilter) ([]models.AuditRecord, error)
	DeleteAuditRecordsBefore(ctx context.Context, before time.Time) (int64, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor. Either client may be nil when the caller
// only needs the other one.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// OpenDatabase connects to PostgreSQL and migrates the audit table.
func OpenDatabase(dsn string, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := db.AutoMigrate(&models.AuditRecord{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if logger != nil {
		logger.Info("database connected, migrations complete")
	}
	return db, nil
}

// OpenRedis connects to Redis and checks the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rdb, nil
}

// PublishAuditRecord fans a record out to live tail subscribers.
func (s *Service) PublishAuditRecord(ctx context.Context, rec models.AuditRecord) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, AuditChannel, payload).Err()
}

// SubscribeAudit subscribes to the audit channel. The caller closes the PubSub.
func (s *Service) SubscribeAudit(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, AuditChannel)
}

// DecodeAuditRecord parses a payload published by PublishAuditRecord.
func DecodeAuditRecord(payload string) (models.AuditRecord, error) {
	var rec models.AuditRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return models.AuditRecord{}, fmt.Errorf("decoding audit record: %w", err)
	}
	return rec, nil
}
