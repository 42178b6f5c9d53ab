package vault

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rollvault/rollvault/internal/domain"
)

// MigrationStatus reports the pending migration, if any.
type MigrationStatus struct {
	Target           string
	MigrateableAfter time.Time
	Scheduled        bool
}

// ScheduleMigration announces a one-time sweep of both balances to target,
// executable only after the fixed delay. A pending schedule is never
// silently overwritten: re-announcing would let a rushed or compromised
// owner key shorten the public notice.
func (v *Vault) ScheduleMigration(caller, target string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return domain.ErrPaused
	}
	if caller != v.owner {
		return domain.ErrUnauthorized
	}
	if target == "" {
		return domain.ErrInvalidParams
	}
	if v.migrationTarget != "" {
		return domain.ErrMigrationAlreadyScheduled
	}

	v.migrationTarget = target
	v.migrateableAfter = v.clock().Add(v.migrationDelay)

	v.emit(domain.Event{
		Kind:     domain.EventMigrationSchedule,
		Account:  caller,
		Receiver: target,
		Detail:   v.migrateableAfter.UTC().Format(time.RFC3339),
	})
	v.logger.Warn("migration scheduled",
		zap.String("target", target),
		zap.Time("migrateable_after", v.migrateableAfter))
	return nil
}

// ExecuteMigration sweeps both balances to the scheduled target once the
// delay has elapsed and clears the schedule. The transfer is one-way.
func (v *Vault) ExecuteMigration(ctx context.Context, caller string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return domain.ErrPaused
	}
	if caller != v.owner {
		return domain.ErrUnauthorized
	}
	if v.migrationTarget == "" {
		return domain.ErrMigrationNotScheduledYet
	}
	if v.clock().Before(v.migrateableAfter) {
		return domain.ErrMigrationNotScheduledYet
	}

	primaryPre, settlePre, err := v.balances(ctx)
	if err != nil {
		return err
	}

	if primaryPre.IsPositive() {
		if err := v.primary.TransferOut(ctx, v.migrationTarget, primaryPre); err != nil {
			return errors.Wrap(err, "sweep primary balance")
		}
	}
	if settlePre.IsPositive() {
		if err := v.settlement.TransferOut(ctx, v.migrationTarget, settlePre); err != nil {
			return errors.Wrap(err, "sweep settlement balance")
		}
	}

	target := v.migrationTarget
	v.migrationTarget = ""
	v.migrateableAfter = time.Time{}

	v.emit(domain.Event{
		Kind:        domain.EventMigrationExecute,
		Account:     caller,
		Receiver:    target,
		PrimaryPre:  primaryPre.String(),
		PrimaryPost: "0",
		SettlePre:   settlePre.String(),
		SettlePost:  "0",
	})
	v.logger.Warn("migration executed",
		zap.String("target", target),
		zap.String("primary_swept", primaryPre.String()),
		zap.String("settlement_swept", settlePre.String()))
	return nil
}

// Migration reports the current migration schedule.
func (v *Vault) Migration() MigrationStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return MigrationStatus{
		Target:           v.migrationTarget,
		MigrateableAfter: v.migrateableAfter,
		Scheduled:        v.migrationTarget != "",
	}
}
