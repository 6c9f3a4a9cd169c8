package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/memecoin2016/meme-desk/internal/state"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultListLimit = 50

// Journal keeps the history of submitted transactions. It is a record only; nothing reads
// contract state from it.
type Journal struct {
	db  *gorm.DB
	bus *state.EventBus
	now func() time.Time

	eventCh chan interface{}
}

var journalEvents = []state.EventType{
	state.TxSubmitted, state.TxSubmitFailed, state.TxMined, state.TxReverted, state.TxUnconfirmed, state.TxDropped,
}

// NewJournal subscribes right away, so events published before Start runs are buffered
// rather than lost.
func NewJournal(dbm *DatabaseManager, bus *state.EventBus) *Journal {
	j := &Journal{
		db:      dbm.GetJournalDB(),
		bus:     bus,
		now:     time.Now,
		eventCh: make(chan interface{}, 100),
	}
	for _, t := range journalEvents {
		bus.Subscribe(t, j.eventCh)
	}
	return j
}

// Start records the subscribed transaction events until ctx is done.
func (j *Journal) Start(ctx context.Context) {
	log.Info("Journal started.")
	defer func() {
		for _, t := range journalEvents {
			j.bus.Unsubscribe(t, j.eventCh)
		}
		log.Info("Journal stopped.")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-j.eventCh:
			ev, ok := msg.(state.TxEvent)
			if !ok {
				log.Errorf("Invalid journal event type %T", msg)
				continue
			}
			if err := j.Record(ev); err != nil {
				log.WithFields(log.Fields{"action": ev.Action, "tx": ev.TxHash}).Errorf("Failed to journal %s: %v", ev.Type, err)
			}
		}
	}
}

// Record applies one lifecycle event. Submissions open a record, receipts close it.
func (j *Journal) Record(ev state.TxEvent) error {
	now := j.now()
	switch ev.Type {
	case state.TxSubmitted, state.TxSubmitFailed:
		rec := &TxRecord{
			ID:          uuid.New().String(),
			Action:      ev.Action,
			Contract:    ev.Contract,
			Method:      ev.Method,
			Value:       ev.Value,
			Fingerprint: ev.Fingerprint,
			TxHash:      ev.TxHash,
			Status:      TX_STATUS_PENDING,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if ev.Type == state.TxSubmitFailed {
			rec.Status = TX_STATUS_FAILED
			rec.Reason = ev.Reason
		}
		return j.db.Create(rec).Error

	case state.TxUnconfirmed:
		return j.close(ev, []string{TX_STATUS_PENDING}, TX_STATUS_UNCONFIRMED, now)
	case state.TxMined:
		return j.close(ev, openStatuses, TX_STATUS_MINED, now)
	case state.TxReverted:
		return j.close(ev, openStatuses, TX_STATUS_REVERTED, now)
	case state.TxDropped:
		return j.close(ev, openStatuses, TX_STATUS_DROPPED, now)

	default:
		return nil
	}
}

// an unconfirmed record can still be mined, reverted or dropped later
var openStatuses = []string{TX_STATUS_PENDING, TX_STATUS_UNCONFIRMED}

func (j *Journal) close(ev state.TxEvent, from []string, status string, now time.Time) error {
	res := j.db.Model(&TxRecord{}).
		Where("tx_hash = ? AND status IN ?", ev.TxHash, from).
		Updates(map[string]interface{}{"status": status, "reason": ev.Reason, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no open record for tx %s", ev.TxHash)
	}
	return nil
}

// List returns the newest records first, optionally for a single action.
func (j *Journal) List(action string, limit int) ([]TxRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	q := j.db.Order("created_at DESC").Limit(limit)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	var records []TxRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (j *Journal) GetByTxHash(hash string) (*TxRecord, error) {
	var rec TxRecord
	err := j.db.Where("tx_hash = ?", hash).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Pending lists records still waiting for a receipt, oldest first.
func (j *Journal) Pending() ([]TxRecord, error) {
	var records []TxRecord
	err := j.db.Where("status IN ?", openStatuses).Order("created_at ASC").Find(&records).Error
	return records, err
}
