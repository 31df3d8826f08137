package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
)

// Key layout of the primary store.
const (
	nextEntryIDKey = "next_entry_id"
	entryKeyPrefix = "entry:"       // entry:<id> -> hash of entry fields
	plateKeyPrefix = "entries:"     // entries:<plate> -> set of entry ids
	timeLayout     = time.DateTime  // timestamps travel as "2006-01-02 15:04:05"
)

// kvClient is the slice of the Redis API the entry store needs. *redis.Client
// satisfies it; tests substitute fakes.
type kvClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// EntryRedis keeps the ledger in Redis with a best-effort relational mirror.
// Primary-store failures propagate so callers can fail closed; mirror
// failures only degrade reporting and are logged.
type EntryRedis struct {
	kv     kvClient
	mirror *EntryMirror
	log    *logger.Logger
}

var _ EntryStore = (*EntryRedis)(nil)

func NewEntryRedis(kv kvClient, mirror *EntryMirror, log *logger.Logger) *EntryRedis {
	return &EntryRedis{kv: kv, mirror: mirror, log: log}
}

// NextID allocates a new unique, monotonically increasing entry id.
func (s *EntryRedis) NextID(ctx context.Context) (int64, error) {
	id, err := s.kv.Incr(ctx, nextEntryIDKey).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate entry id: %w", err)
	}
	return id, nil
}

// Put writes the record hash and the plate index in one transaction, then
// mirrors it.
func (s *EntryRedis) Put(ctx context.Context, e models.Entry) error {
	fields := entryToFields(e)
	_, err := s.kv.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, entryKey(e.ID), fields)
		pipe.SAdd(ctx, plateKey(e.PlateNumber), e.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write entry %d: %w", e.ID, err)
	}
	s.mirrorEntry(ctx, e)
	return nil
}

// Get reads the record, falling back to the mirror and re-caching on a hit.
func (s *EntryRedis) Get(ctx context.Context, id int64) (models.Entry, bool, error) {
	fields, err := s.kv.HGetAll(ctx, entryKey(id)).Result()
	if err != nil {
		return models.Entry{}, false, fmt.Errorf("read entry %d: %w", id, err)
	}
	if len(fields) > 0 {
		e, err := entryFromFields(id, fields)
		if err != nil {
			return models.Entry{}, false, err
		}
		return e, true, nil
	}

	e, ok, err := s.mirror.Get(ctx, id)
	if err != nil || !ok {
		return models.Entry{}, false, err
	}
	if err := s.kv.HSet(ctx, entryKey(id), entryToFields(e)).Err(); err != nil {
		s.log.Warnw("re-cache of mirrored entry failed", "entry_id", id, "err", err)
	}
	return e, true, nil
}

// IDsByPlate lists every entry id recorded for the plate.
func (s *EntryRedis) IDsByPlate(ctx context.Context, plate string) ([]int64, error) {
	members, err := s.kv.SMembers(ctx, plateKey(plate)).Result()
	if err != nil {
		return nil, fmt.Errorf("read plate index %s: %w", plate, err)
	}
	if len(members) > 0 {
		ids := make([]int64, 0, len(members))
		for _, m := range members {
			id, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				s.log.Warnw("plate index holds a non-numeric id", "plate", plate, "member", m)
				continue
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	ids, err := s.mirror.IDsByPlate(ctx, plate)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	members2 := make([]interface{}, len(ids))
	for i, id := range ids {
		members2[i] = id
	}
	if err := s.kv.SAdd(ctx, plateKey(plate), members2...).Err(); err != nil {
		s.log.Warnw("re-cache of plate index failed", "plate", plate, "err", err)
	}
	return ids, nil
}

// UpdatePayment commits the payment field group in a single transaction so a
// crash can never leave a half-applied payment.
func (s *EntryRedis) UpdatePayment(ctx context.Context, id int64, charge int64, at time.Time) error {
	_, err := s.kv.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, entryKey(id), map[string]interface{}{
			"payment_status":    "1",
			"charge_amount":     strconv.FormatInt(charge, 10),
			"payment_timestamp": at.UTC().Format(timeLayout),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit payment for entry %d: %w", id, err)
	}
	if err := s.mirror.MarkPaid(ctx, id, charge, at); err != nil {
		s.log.Warnw("payment mirror write failed", "entry_id", id, "err", err)
	}
	return nil
}

// UpdateExit commits the exit field group in a single transaction.
func (s *EntryRedis) UpdateExit(ctx context.Context, id int64, at time.Time) error {
	_, err := s.kv.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, entryKey(id), map[string]interface{}{
			"exit_status":    "1",
			"exit_timestamp": at.UTC().Format(timeLayout),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit exit for entry %d: %w", id, err)
	}
	if err := s.mirror.MarkExited(ctx, id, at); err != nil {
		s.log.Warnw("exit mirror write failed", "entry_id", id, "err", err)
	}
	return nil
}

func (s *EntryRedis) mirrorEntry(ctx context.Context, e models.Entry) {
	if err := s.mirror.Upsert(ctx, e); err != nil {
		s.log.Warnw("entry mirror write failed", "entry_id", e.ID, "err", err)
	}
}

func entryKey(id int64) string     { return entryKeyPrefix + strconv.FormatInt(id, 10) }
func plateKey(plate string) string { return plateKeyPrefix + plate }

func entryToFields(e models.Entry) map[string]interface{} {
	fields := map[string]interface{}{
		"plate_number":    e.PlateNumber,
		"entry_timestamp": e.EntryTime.UTC().Format(timeLayout),
		"payment_status":  statusFlag(e.PaymentStatus == models.PaymentPaid),
		"exit_status":     statusFlag(e.ExitStatus == models.ExitExited),
	}
	if e.ChargeAmount != nil {
		fields["charge_amount"] = strconv.FormatInt(*e.ChargeAmount, 10)
	}
	if e.PaymentTime != nil {
		fields["payment_timestamp"] = e.PaymentTime.UTC().Format(timeLayout)
	}
	if e.ExitTime != nil {
		fields["exit_timestamp"] = e.ExitTime.UTC().Format(timeLayout)
	}
	return fields
}

func entryFromFields(id int64, fields map[string]string) (models.Entry, error) {
	entryTime, err := time.Parse(timeLayout, fields["entry_timestamp"])
	if err != nil {
		return models.Entry{}, fmt.Errorf("entry %d has a bad entry_timestamp %q: %w", id, fields["entry_timestamp"], err)
	}
	e := models.Entry{
		ID:            id,
		PlateNumber:   fields["plate_number"],
		EntryTime:     entryTime,
		PaymentStatus: models.PaymentUnpaid,
		ExitStatus:    models.ExitInside,
	}
	if fields["payment_status"] == "1" {
		e.PaymentStatus = models.PaymentPaid
	}
	if fields["exit_status"] == "1" {
		e.ExitStatus = models.ExitExited
	}
	if v := fields["charge_amount"]; v != "" {
		charge, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.Entry{}, fmt.Errorf("entry %d has a bad charge_amount %q: %w", id, v, err)
		}
		e.ChargeAmount = &charge
	}
	if v := fields["payment_timestamp"]; v != "" {
		t, err := time.Parse(timeLayout, v)
		if err != nil {
			return models.Entry{}, fmt.Errorf("entry %d has a bad payment_timestamp %q: %w", id, v, err)
		}
		e.PaymentTime = &t
	}
	if v := fields["exit_timestamp"]; v != "" {
		t, err := time.Parse(timeLayout, v)
		if err != nil {
			return models.Entry{}, fmt.Errorf("entry %d has a bad exit_timestamp %q: %w", id, v, err)
		}
		e.ExitTime = &t
	}
	return e, nil
}

func statusFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
