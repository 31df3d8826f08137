package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/models"
	"github.com/yvesHakizimana/Parking-Management-System/internal/peripheral"
	"github.com/yvesHakizimana/Parking-Management-System/internal/protocol"
	"github.com/yvesHakizimana/Parking-Management-System/internal/repository"
)

// Payment rejection reasons as sent back over the wire.
const (
	reasonInvalidBalance  = "invalid balance"
	reasonNegativeBalance = "negative balance"
	reasonBalanceTooLarge = "balance exceeds maximum"
	reasonNoOpenSession   = "no unpaid session for plate"
	reasonInsufficient    = "insufficient balance"
	reasonInternal        = "internal error"
)

// PaymentService settles unpaid visits against prepaid card balances received
// from the payment terminal.
type PaymentService struct {
	ledger *VehicleLedger
	events repository.EventStore
	gates  GateController
	cfg    EngineConfig
	log    *logger.Logger
	now    func() time.Time
}

func NewPaymentService(ledger *VehicleLedger, events repository.EventStore, gates GateController,
	cfg EngineConfig, log *logger.Logger) *PaymentService {
	return &PaymentService{
		ledger: ledger,
		events: events,
		gates:  gates,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Run polls the payment terminal link until ctx is canceled. Every request
// line gets exactly one response line.
func (s *PaymentService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			line, ok := s.gates.ReadLine(peripheral.RolePayment)
			if !ok {
				continue
			}
			if !protocol.IsRequest(line) {
				s.log.Debugf("payment: ignoring terminal chatter: %q", line)
				continue
			}
			resp := s.HandleRequest(ctx, line)
			if err := s.gates.WriteLine(peripheral.RolePayment, resp); err != nil {
				s.log.Errorf("payment: respond to terminal: %v", err)
			}
		}
	}
}

// HandleRequest parses one terminal request and returns the wire response.
func (s *PaymentService) HandleRequest(ctx context.Context, line string) string {
	req, err := protocol.ParseRequest(line)
	if err != nil {
		s.log.Warnf("payment: malformed request %q: %v", line, err)
		return protocol.Error(err.Error())
	}

	balance, reason := s.validateBalance(req.Balance)
	if reason != "" {
		s.recordFailure(ctx, req.Plate, 0, reason)
		return protocol.Error(reason)
	}

	newBalance, reason, err := s.process(ctx, req.Plate, balance)
	if err != nil {
		s.log.Errorf("payment: process %s: %v", req.Plate, err)
		s.recordFailure(ctx, req.Plate, 0, reasonInternal)
		return protocol.Error(reasonInternal)
	}
	if reason != "" {
		return protocol.Error(reason)
	}
	return protocol.NewBalance(newBalance)
}

// validateBalance parses the raw balance field. The reason string is empty
// when the balance is acceptable.
func (s *PaymentService) validateBalance(raw string) (int64, string) {
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, reasonInvalidBalance
	}
	if balance < 0 {
		return 0, reasonNegativeBalance
	}
	if balance > s.cfg.MaxBalance {
		return 0, reasonBalanceTooLarge
	}
	return balance, ""
}

// process settles the plate's unpaid visit. The reason string carries a
// client-facing rejection; err is reserved for storage failures.
func (s *PaymentService) process(ctx context.Context, plate string, balance int64) (int64, string, error) {
	e, found, err := s.ledger.ActiveEntry(ctx, plate)
	if err != nil {
		return 0, "", err
	}
	if !found || e.PaymentStatus == models.PaymentPaid {
		s.recordFailure(ctx, plate, 0, reasonNoOpenSession)
		return 0, reasonNoOpenSession, nil
	}

	now := s.now()
	charge := s.ComputeCharge(e.EntryTime, now)
	if balance < charge {
		reason := fmt.Sprintf("%s: need %d, available %d", reasonInsufficient, charge, balance)
		s.log.Infof("payment failed for %s: charge %d exceeds balance %d", plate, charge, balance)
		s.recordFailure(ctx, plate, e.ID, reason)
		return 0, reason, nil
	}

	if err := s.ledger.MarkPaid(ctx, e.ID, charge, now); err != nil {
		return 0, "", err
	}

	newBalance := balance - charge
	s.log.Infof("payment of %d accepted for %s (entry %d), new balance %d", charge, plate, e.ID, newBalance)
	_ = s.events.AppendLog(ctx, models.LogEvent{
		Kind:    models.EventPaymentSuccess,
		Plate:   plate,
		EntryID: e.ID,
		Message: fmt.Sprintf("charged %d, new balance %d", charge, newBalance),
	})
	return newBalance, "", nil
}

// ComputeCharge prices a visit: every started hour costs the hourly rate,
// with a floor at the minimum charge.
func (s *PaymentService) ComputeCharge(entered, now time.Time) int64 {
	parked := now.Sub(entered)
	if parked < 0 {
		parked = 0
	}
	hours := int64(parked / time.Hour)
	if parked%time.Hour > 0 {
		hours++
	}
	charge := hours * s.cfg.ChargeRate
	if charge < s.cfg.MinimumCharge {
		charge = s.cfg.MinimumCharge
	}
	return charge
}

func (s *PaymentService) recordFailure(ctx context.Context, plate string, entryID int64, reason string) {
	_ = s.events.AppendLog(ctx, models.LogEvent{
		Kind:    models.EventPaymentFailed,
		Plate:   plate,
		EntryID: entryID,
		Message: reason,
	})
}
