package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Kifuda/internal/events"
)

// Ownership holds the single transferable owner capability. The owner gates
// the highest-privilege registry operations (manager grants, pointer changes).
type Ownership struct {
	owner   common.Address
	emitter *events.Emitter
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewOwnership creates the capability with its initial holder.
func NewOwnership(initial common.Address, emitter *events.Emitter, logger *zap.Logger) (*Ownership, error) {
	if initial == (common.Address{}) {
		return nil, fmt.Errorf("%w: initial owner", ErrZeroAddress)
	}
	return &Ownership{
		owner:   initial,
		emitter: emitter,
		logger:  logger,
	}, nil
}

// Owner returns the current holder.
func (o *Ownership) Owner() common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owner
}

// IsOwner reports whether addr holds the capability.
func (o *Ownership) IsOwner(addr common.Address) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return addr == o.owner
}

// TransferOwnership atomically replaces the holder. Only the current owner
// may transfer, and never to the zero address.
func (o *Ownership) TransferOwnership(caller, newOwner common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if caller != o.owner {
		return fmt.Errorf("%w: ownership transfer requires current owner", ErrUnauthorized)
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: new owner", ErrZeroAddress)
	}

	previous := o.owner
	o.owner = newOwner

	o.logger.Info("Ownership transferred",
		zap.Stringer("previous", previous),
		zap.Stringer("new", newOwner),
	)
	o.emitter.Emit(events.OwnershipTransferred{
		Caller:   caller,
		Previous: previous,
		New:      newOwner,
	})
	return nil
}
