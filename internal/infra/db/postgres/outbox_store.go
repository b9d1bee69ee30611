package postgres

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "rentalhub/internal/app/outbox"
	"rentalhub/internal/app/uow"
	infraoutbox "rentalhub/internal/infra/outbox"
)

// OutboxStore writes events into outbox_events inside the unit's
// transaction and serves them to the relay worker.
type OutboxStore struct {
	db    *gorm.DB
	lease time.Duration
}

func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db, lease: time.Minute}
}

func (s *OutboxStore) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	model := OutboxModel{
		ID:          rec.ID,
		Name:        rec.Name,
		Aggregate:   rec.Aggregate,
		Payload:     rec.Payload,
		Headers:     headers,
		OccurredAt:  rec.OccurredAt,
		State:       infraoutbox.StateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
	if err := conn(ctx, s.db).Create(&model).Error; err != nil {
		return uow.Unavailable(err)
	}
	return nil
}

// Flush is a no-op; the worker relays committed rows.
func (s *OutboxStore) Flush(context.Context) error { return nil }

// Claim locks due rows with SKIP LOCKED so parallel workers split the work.
func (s *OutboxStore) Claim(ctx context.Context, workerID string, limit int) ([]infraoutbox.Event, error) {
	var out []infraoutbox.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var rows []OutboxModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(state IN ? AND next_attempt <= ?) OR (state = ? AND claimed_at <= ?)",
				[]string{infraoutbox.StateNew, infraoutbox.StateFailed}, now,
				infraoutbox.StateClaimed, now.Add(-s.lease)).
			Order("next_attempt ASC").
			Limit(limit).
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}
		ids := make([]string, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
			headers := map[string]string{}
			if len(row.Headers) > 0 {
				if err := json.Unmarshal(row.Headers, &headers); err != nil {
					return err
				}
			}
			out = append(out, infraoutbox.Event{
				ID:         row.ID,
				Name:       row.Name,
				Payload:    row.Payload,
				OccurredAt: row.OccurredAt,
				Aggregate:  row.Aggregate,
				Headers:    headers,
				Attempts:   row.Attempts,
			})
		}
		return tx.Model(&OutboxModel{}).Where("id IN ?", ids).
			Updates(map[string]any{"state": infraoutbox.StateClaimed, "claimed_by": workerID, "claimed_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&OutboxModel{}).Where("id = ?", id).
		Updates(map[string]any{"state": infraoutbox.StateSent, "sent_at": now}).Error
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	return s.db.WithContext(ctx).Model(&OutboxModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"state":        infraoutbox.StateFailed,
			"next_attempt": next,
			"last_error":   errMsg,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error
}

var (
	_ appoutbox.Outbox  = (*OutboxStore)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)
