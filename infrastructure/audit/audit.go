package audit

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/uptrace/bun"

	"freightledger/models"
)

// SystemActor is recorded when a caller supplies no actor.
const SystemActor = "system"

// Service writes audit records inside the caller transaction.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Write appends one audit row through idb. before and after are stored as JSON.
func (s *Service) Write(ctx context.Context, idb bun.IDB, actor, action, entityType, entityID string, before, after any) error {
	beforeJSON, err := marshal(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshal(after)
	if err != nil {
		return err
	}
	log := &models.AuditLog{
		Actor:      NormalizeActor(actor),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
	}
	_, err = idb.NewInsert().Model(log).Exec(ctx)
	return err
}

// List returns the newest audit rows for one entity type, newest first.
func (s *Service) List(ctx context.Context, idb bun.IDB, entityType string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows := make([]models.AuditLog, 0)
	err := idb.NewSelect().
		Model(&rows).
		Where("entity_type = ?", entityType).
		OrderExpr("id DESC").
		Limit(limit).
		Scan(ctx)
	return rows, err
}

// NormalizeActor trims actor and falls back to SystemActor.
func NormalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return SystemActor
	}
	return actor
}

func marshal(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
