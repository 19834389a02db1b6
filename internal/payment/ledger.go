package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Ledger sources.
const (
	SourceWebhook = "webhook"
	SourceVerify  = "verify"
)

// ChargeRecord is one confirmation of a paid reference.
type ChargeRecord struct {
	Reference  string
	Email      string
	Amount     int64
	Currency   string
	Source     string
	RecordedAt time.Time
}

// LedgerEntry aggregates every confirmation seen for a reference.
type LedgerEntry struct {
	Reference string
	Email     string
	Amount    int64
	Currency  string
	Sources   map[string]time.Time
}

// RecordFromTransaction builds a record from provider transaction JSON.
func RecordFromTransaction(data json.RawMessage, source string, at time.Time) (ChargeRecord, error) {
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return ChargeRecord{}, fmt.Errorf("decode transaction: %w", err)
	}
	if strings.TrimSpace(tx.Reference) == "" {
		return ChargeRecord{}, errors.New("transaction without reference")
	}
	return ChargeRecord{
		Reference:  tx.Reference,
		Email:      tx.Customer.Email,
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		Source:     source,
		RecordedAt: at.UTC(),
	}, nil
}

// RedisLedger keeps an additive hash per reference. It is not an order database.
type RedisLedger struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

func (l RedisLedger) key(reference string) string {
	prefix := strings.TrimSpace(l.Prefix)
	if prefix == "" {
		prefix = "cbhub:ledger"
	}
	return prefix + ":" + reference
}

// Record stores rec and reports whether the reference was new to the ledger.
// Later records only add their source.
func (l RedisLedger) Record(ctx context.Context, rec ChargeRecord) (bool, error) {
	if l.Client == nil {
		return false, errors.New("ledger: redis client not configured")
	}
	if strings.TrimSpace(rec.Reference) == "" {
		return false, errors.New("ledger: reference is required")
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	key := l.key(rec.Reference)
	created, err := l.Client.HSetNX(ctx, key, "reference", rec.Reference).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: record %s: %w", rec.Reference, err)
	}
	_, err = l.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if created {
			pipe.HSet(ctx, key,
				"email", rec.Email,
				"amount", rec.Amount,
				"currency", rec.Currency,
			)
		}
		pipe.HSetNX(ctx, key, "source:"+rec.Source, rec.RecordedAt.Format(time.RFC3339Nano))
		if l.TTL > 0 {
			pipe.Expire(ctx, key, l.TTL)
		}
		return nil
	})
	if err != nil {
		return created, fmt.Errorf("ledger: record %s: %w", rec.Reference, err)
	}
	return created, nil
}

// Get returns the entry for reference, or false when none was recorded.
func (l RedisLedger) Get(ctx context.Context, reference string) (LedgerEntry, bool, error) {
	if l.Client == nil {
		return LedgerEntry{}, false, errors.New("ledger: redis client not configured")
	}
	fields, err := l.Client.HGetAll(ctx, l.key(reference)).Result()
	if err != nil {
		return LedgerEntry{}, false, err
	}
	if len(fields) == 0 {
		return LedgerEntry{}, false, nil
	}
	entry := LedgerEntry{
		Reference: fields["reference"],
		Email:     fields["email"],
		Currency:  fields["currency"],
		Sources:   map[string]time.Time{},
	}
	entry.Amount, _ = strconv.ParseInt(fields["amount"], 10, 64)
	for k, v := range fields {
		if src, ok := strings.CutPrefix(k, "source:"); ok {
			at, _ := time.Parse(time.RFC3339Nano, v)
			entry.Sources[src] = at
		}
	}
	return entry, true, nil
}

// MarkNotified flags the receipt for reference as sent. It reports false when
// it was already flagged.
func (l RedisLedger) MarkNotified(ctx context.Context, reference string) (bool, error) {
	if l.Client == nil {
		return false, errors.New("ledger: redis client not configured")
	}
	return l.Client.HSetNX(ctx, l.key(reference), "notified_at", time.Now().UTC().Format(time.RFC3339Nano)).Result()
}

// Notified reports whether a receipt was already sent for reference.
func (l RedisLedger) Notified(ctx context.Context, reference string) (bool, error) {
	if l.Client == nil {
		return false, errors.New("ledger: redis client not configured")
	}
	return l.Client.HExists(ctx, l.key(reference), "notified_at").Result()
}
