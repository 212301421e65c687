package protocol

import (
	"context"

	"github.com/datacapsule-io/dcserver/internal/capsule"
	"github.com/datacapsule-io/dcserver/internal/dchash"
)

// SubscriberSession is the per-connection state machine for the
// Subscriber role (spec §4.4.4). It holds no session state of its own;
// every operation reads or waits on the shared per-capsule state.
type SubscriberSession struct {
	d       *Dispatcher
	capsule *capsule.Capsule
}

// OpenSubscriber begins a Subscriber session against capsule name.
func (d *Dispatcher) OpenSubscriber(name dchash.Hash) (*SubscriberSession, error) {
	c, err := d.loadOrGetCapsule(name)
	if err != nil {
		return nil, err
	}
	return &SubscriberSession{d: d, capsule: c}, nil
}

// GetLastNum implements get_last_num().
func (s *SubscriberSession) GetLastNum() uint64 {
	committed, _, _ := s.capsule.Latest()
	return committed
}

// NameFromNum implements name_from_num(seq).
func (s *SubscriberSession) NameFromNum(seq uint64) (dchash.Hash, bool, error) {
	return s.d.Store.NameFromNum(s.capsule.Capsule, seq)
}

// NumFromName implements num_from_name(hash).
func (s *SubscriberSession) NumFromName(hash dchash.Hash) (uint64, bool, error) {
	return s.d.Store.NumFromName(s.capsule.Capsule, hash)
}

// WaitAfter implements wait_after(seq): blocks until latest_seq exceeds
// seq or ctx is canceled by connection close (spec §4.4.4).
func (s *SubscriberSession) WaitAfter(ctx context.Context, seq uint64) (uint64, error) {
	return s.capsule.Notify.Wait(ctx, seq)
}
