/*
Package watcher follows Lottery contract notifications via WebSocket RPC
subscription, exposes them as prometheus metrics and records completed
draws into the history store.
*/
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-lottery/pkg/history"
	"github.com/nspcc-dev/neo-lottery/pkg/lottery"
	"go.uber.org/zap"
)

// ErrSubscriptionClosed is returned by Run when the notification channel is
// closed by the RPC client (usually because of a lost connection).
var ErrSubscriptionClosed = errors.New("subscription channel closed")

// notificationBufSize is the capacity of the notification channel.
const notificationBufSize = 64

// Subscriber is a part of rpcclient.WSClient used to receive notifications.
type Subscriber interface {
	ReceiveExecutionNotifications(flt *neorpc.NotificationFilter, rcvr chan<- *state.ContainedNotificationEvent) (string, error)
	Unsubscribe(id string) error
}

// HeightGetter returns the index of the block a transaction was included in,
// rpcclient.Client implements it.
type HeightGetter interface {
	GetTransactionHeight(hash util.Uint256) (uint32, error)
}

// DrawStore persists completed draws.
type DrawStore interface {
	Put(d history.Draw) error
}

// Options are the Watcher parameters.
type Options struct {
	// Contract is the lottery contract hash.
	Contract util.Uint160
	// DedupCacheSize is the number of notifications remembered to skip
	// duplicates, zero disables the check.
	DedupCacheSize int
	// Heights is used to find a block of the draw, it's optional.
	Heights HeightGetter
	// Store is where draws are saved to, it's optional.
	Store DrawStore
}

// Watcher handles lottery notifications.
type Watcher struct {
	log      *zap.Logger
	contract util.Uint160
	sub      Subscriber
	heights  HeightGetter
	store    DrawStore
	seen     *lru.Cache
	metrics  *Metrics
	now      func() time.Time
}

// New creates a Watcher using the given subscriber and metrics. Nil logger
// disables logging.
func New(opts Options, sub Subscriber, m *Metrics, log *zap.Logger) (*Watcher, error) {
	if sub == nil {
		return nil, errors.New("nil subscriber")
	}
	if m == nil {
		return nil, errors.New("nil metrics")
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		log:      log.With(zap.String("contract", opts.Contract.StringLE())),
		contract: opts.Contract,
		sub:      sub,
		heights:  opts.Heights,
		store:    opts.Store,
		metrics:  m,
		now:      time.Now,
	}
	if opts.DedupCacheSize > 0 {
		var err error
		w.seen, err = lru.New(opts.DedupCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create dedup cache: %w", err)
		}
	}
	return w, nil
}

// Run subscribes to the contract notifications and handles them until the
// context is cancelled or the subscription is closed.
func (w *Watcher) Run(ctx context.Context) error {
	ch := make(chan *state.ContainedNotificationEvent, notificationBufSize)
	id, err := w.sub.ReceiveExecutionNotifications(&neorpc.NotificationFilter{Contract: &w.contract}, ch)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	w.log.Info("subscribed to notifications", zap.String("id", id))
	defer w.unsubscribe(id, ch)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("stopping watcher")
			return nil
		case ev, ok := <-ch:
			if !ok {
				return ErrSubscriptionClosed
			}
			if err := w.handle(ev); err != nil {
				w.log.Warn("failed to handle notification",
					zap.String("container", ev.Container.StringLE()),
					zap.String("name", ev.Name),
					zap.Error(err))
			}
		}
	}
}

// unsubscribe drops the subscription and drains ch until the client
// confirms it, the client can't process the request while it's blocked on a
// full channel.
func (w *Watcher) unsubscribe(id string, ch <-chan *state.ContainedNotificationEvent) {
	done := make(chan error, 1)
	go func() { done <- w.sub.Unsubscribe(id) }()
	for {
		select {
		case err := <-done:
			if err != nil {
				w.log.Warn("failed to unsubscribe", zap.String("id", id), zap.Error(err))
			}
			return
		case _, ok := <-ch:
			if !ok {
				ch = nil
			}
		}
	}
}

func (w *Watcher) handle(ev *state.ContainedNotificationEvent) error {
	if !ev.ScriptHash.Equals(w.contract) {
		return nil
	}
	switch ev.Name {
	case lottery.EnteredEventName:
		var e lottery.EnteredEvent
		if err := e.FromStackItem(ev.Item); err != nil {
			return err
		}
		dup, err := w.isDuplicate(ev)
		if err != nil || dup {
			return err
		}
		w.metrics.entered(e.Amount)
		w.log.Info("new entry",
			zap.String("player", e.Player.StringLE()),
			zap.Stringer("amount", e.Amount),
			zap.String("tx", ev.Container.StringLE()))
	case lottery.WinnerPickedEventName:
		var e lottery.WinnerPickedEvent
		if err := e.FromStackItem(ev.Item); err != nil {
			return err
		}
		if !e.Round.IsUint64() {
			return fmt.Errorf("invalid round %s", e.Round)
		}
		dup, err := w.isDuplicate(ev)
		if err != nil || dup {
			return err
		}
		w.metrics.winnerPicked(e.Prize, e.Round)
		w.log.Info("winner picked",
			zap.String("winner", e.Winner.StringLE()),
			zap.Stringer("prize", e.Prize),
			zap.Stringer("round", e.Round),
			zap.String("tx", ev.Container.StringLE()))
		return w.saveDraw(ev.Container, &e)
	default:
		w.log.Debug("unknown notification", zap.String("name", ev.Name))
	}
	return nil
}

// isDuplicate checks whether this notification was already handled and
// remembers it otherwise.
func (w *Watcher) isDuplicate(ev *state.ContainedNotificationEvent) (bool, error) {
	if w.seen == nil {
		return false, nil
	}
	data, err := stackitem.Serialize(ev.Item)
	if err != nil {
		return false, fmt.Errorf("failed to serialize notification: %w", err)
	}
	key := ev.Container.StringLE() + ev.Name + string(data)
	found, _ := w.seen.ContainsOrAdd(key, struct{}{})
	if found {
		w.log.Debug("duplicate notification", zap.String("tx", ev.Container.StringLE()), zap.String("name", ev.Name))
	}
	return found, nil
}

func (w *Watcher) saveDraw(tx util.Uint256, e *lottery.WinnerPickedEvent) error {
	if w.store == nil {
		return nil
	}
	d := history.Draw{
		Round:     e.Round.Uint64(),
		Winner:    e.Winner,
		Prize:     e.Prize,
		Tx:        tx,
		Timestamp: uint64(w.now().UnixMilli()),
	}
	if w.heights != nil {
		h, err := w.heights.GetTransactionHeight(tx)
		if err != nil {
			w.log.Warn("failed to get transaction height", zap.String("tx", tx.StringLE()), zap.Error(err))
		} else {
			d.Block = h
		}
	}
	if err := w.store.Put(d); err != nil {
		return fmt.Errorf("failed to save draw %d: %w", d.Round, err)
	}
	return nil
}
