// Package deadletter records envelopes that were released without delivery:
// messages dropped when a worker is torn down, refused remote calls, and
// remote payloads addressed to an unknown delegate.
//
// Records go to a Store. MemoryStore keeps a bounded in-process ring;
// GormStore persists them through any GORM dialector.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/delegate/pkg/envelope"
)

// Reasons a record was written.
const (
	ReasonWorkerClosed    = "worker_closed"
	ReasonUnknownDelegate = "unknown_delegate"
	ReasonDecode          = "decode_error"
)

// Record is the GORM model persisted for each dead letter.
type Record struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EnvelopeID  string    `gorm:"size:64;index" json:"envelope_id"`
	Source      string    `gorm:"size:255;not null;index" json:"source"`
	Reason      string    `gorm:"size:64;not null" json:"reason"`
	Fingerprint string    `gorm:"size:255" json:"fingerprint"`
	Payload     string    `gorm:"type:text" json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
	FailedAt    time.Time `gorm:"autoCreateTime" json:"failed_at"`
}

func (Record) TableName() string { return "delegate_dead_letters" }

// Store persists dead letters. Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, rec Record) error
	// List returns the newest records first, at most limit of them.
	List(ctx context.Context, limit int) ([]Record, error)
}

// FromMessage builds a record for msg. Call it before releasing msg; the
// payload is gone afterwards.
func FromMessage(source, reason string, msg *envelope.Message) Record {
	rec := Record{
		EnvelopeID:  msg.ID(),
		Source:      source,
		Reason:      reason,
		Fingerprint: msg.Fingerprint(),
		CreatedAt:   msg.CreatedAt(),
		FailedAt:    time.Now(),
	}

	payload, err := json.Marshal(msg.Payload())
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error": "could not marshal: %v"}`, err))
	}
	rec.Payload = string(payload)
	return rec
}

// ─────────────────────────────────────────────
// Memory store
// ─────────────────────────────────────────────

// DefaultMemoryLimit bounds MemoryStore when no limit is given.
const DefaultMemoryLimit = 1000

// MemoryStore keeps the most recent records in memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	limit   int
	nextID  uint
}

// NewMemoryStore returns a store holding at most limit records (oldest are
// evicted first). A non-positive limit uses DefaultMemoryLimit.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	if rec.FailedAt.IsZero() {
		rec.FailedAt = time.Now()
	}
	s.records = append(s.records, rec)
	if over := len(s.records) - s.limit; over > 0 {
		s.records = append([]Record(nil), s.records[over:]...)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Len returns the number of records held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ─────────────────────────────────────────────
// GORM store
// ─────────────────────────────────────────────

// GormStore persists records through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the dead-letter table and returns a store on db.
//
//	db, _ := database.Connect()
//	store, _ := deadletter.NewGormStore(db)
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("deadletter: migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Put(ctx context.Context, rec Record) error {
	rec.ID = 0
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("deadletter: put %s: %w", rec.EnvelopeID, err)
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, limit int) ([]Record, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Record
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("deadletter: list: %w", err)
	}
	return out, nil
}
