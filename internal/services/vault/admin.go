package vault

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rollvault/rollvault/internal/domain"
)

// SetBufferTime changes the cool-down duration after each round end.
func (v *Vault) SetBufferTime(caller string, buffer time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return domain.ErrPaused
	}
	if caller != v.owner {
		return domain.ErrUnauthorized
	}
	if buffer < 0 {
		return domain.ErrInvalidParams
	}

	v.bufferTime = buffer
	v.emit(domain.Event{
		Kind:    domain.EventSetBufferTime,
		Account: caller,
		Detail:  buffer.String(),
	})
	v.logger.Info("buffer time updated", zap.Duration("buffer", buffer))
	return nil
}

// SetLimitPrice changes the minimum acceptable unit price for option sales.
func (v *Vault) SetLimitPrice(caller string, price decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return domain.ErrPaused
	}
	if caller != v.owner {
		return domain.ErrUnauthorized
	}
	if price.IsNegative() {
		return domain.ErrInvalidParams
	}

	v.limitPrice = price
	v.emit(domain.Event{
		Kind:    domain.EventSetLimitPrice,
		Account: caller,
		Price:   price.String(),
	})
	v.logger.Info("limit price updated", zap.String("price", price.String()))
	return nil
}

// Pause makes every mutating entry point fail fast until Unpause.
func (v *Vault) Pause(caller string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return domain.ErrUnauthorized
	}
	if v.paused {
		return domain.ErrPaused
	}

	v.paused = true
	v.emit(domain.Event{Kind: domain.EventPause, Account: caller})
	v.logger.Warn("vault paused", zap.String("owner", caller))
	return nil
}

// Unpause re-enables mutating operations.
func (v *Vault) Unpause(caller string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return domain.ErrUnauthorized
	}
	if !v.paused {
		return domain.ErrInvalidParams
	}

	v.paused = false
	v.emit(domain.Event{Kind: domain.EventUnpause, Account: caller})
	v.logger.Info("vault unpaused", zap.String("owner", caller))
	return nil
}
