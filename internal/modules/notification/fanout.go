// README: Notification fanout: turns committed ride transitions into per-recipient notifications.
package notification

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"ridehail/internal/logger"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipient types.ID, limit int) ([]Notification, error)
	MarkOpened(ctx context.Context, id, recipient types.ID) error
}

type Options struct {
	Shards  int
	Buffer  int
	Retries int
	Backoff time.Duration
	// Timeout bounds each store or publish attempt.
	Timeout time.Duration
}

type delivery struct {
	n       Notification
	channel string
	payload []byte
}

// job is everything one transition produces. Jobs of the same ride always land
// on the same shard, so they are delivered in transition order.
type job struct {
	ctx        context.Context
	rideID     types.ID
	deliveries []delivery
}

// Fanout implements ride.Notifier. Enqueueing blocks when a shard is full and
// never drops; delivery failures are retried, logged and never returned.
type Fanout struct {
	store  Store
	pub    Publisher
	opts   Options
	log    logger.ILogger
	now    func() time.Time
	shards []chan job
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewFanout(store Store, pub Publisher, opts Options, log logger.ILogger) *Fanout {
	if opts.Shards <= 0 {
		opts.Shards = 1
	}
	if opts.Buffer < 0 {
		opts.Buffer = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	f := &Fanout{
		store:  store,
		pub:    pub,
		opts:   opts,
		log:    log,
		now:    time.Now,
		shards: make([]chan job, opts.Shards),
	}
	for i := range f.shards {
		ch := make(chan job, opts.Buffer)
		f.shards[i] = ch
		f.wg.Add(1)
		go f.worker(ch)
	}
	return f
}

func (f *Fanout) OnAssigned(ctx context.Context, r ride.Ride) {
	if r.DriverID == nil {
		return
	}
	payload, err := json.Marshal(AssignedEvent{RideID: r.ID})
	if err != nil {
		f.log.Error("encode assigned event", logger.Error(err))
		return
	}
	f.enqueue(ctx, r.ID, []delivery{{
		n:       f.notification(*r.DriverID, KindRideStarting, "", r.ID),
		channel: DriverAssignedChannel(*r.DriverID),
		payload: payload,
	}})
}

func (f *Fanout) OnStatusChanged(ctx context.Context, r ride.Ride, status ride.Status, message string) {
	kind, ok := KindForStatus(status)
	if !ok {
		return
	}
	f.toPassengers(ctx, r, r.Passengers, kind, StatusEvent{Status: status, RideID: r.ID, Message: message})
}

func (f *Fanout) OnAddedToRide(ctx context.Context, r ride.Ride) {
	var added []ride.Passenger
	for _, p := range r.Passengers {
		if !p.Main {
			added = append(added, p)
		}
	}
	if len(added) == 0 {
		return
	}
	f.toPassengers(ctx, r, added, KindAddedToRide, StatusEvent{Status: r.Status, RideID: r.ID, Message: defaultContent[KindAddedToRide]})
}

func (f *Fanout) toPassengers(ctx context.Context, r ride.Ride, passengers []ride.Passenger, kind Kind, ev StatusEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		f.log.Error("encode status event", logger.Error(err))
		return
	}
	deliveries := make([]delivery, 0, len(passengers))
	for _, p := range passengers {
		deliveries = append(deliveries, delivery{
			n:       f.notification(p.ID, kind, ev.Message, r.ID),
			channel: PassengerStatusChannel(p.ID),
			payload: payload,
		})
	}
	f.enqueue(ctx, r.ID, deliveries)
}

func (f *Fanout) notification(recipient types.ID, kind Kind, message string, rideID types.ID) Notification {
	rid := rideID
	return Notification{
		ID:        types.NewID(),
		Recipient: recipient,
		Kind:      kind,
		Content:   contentFor(kind, message),
		RideID:    &rid,
		CreatedAt: f.now(),
	}
}

func (f *Fanout) enqueue(ctx context.Context, rideID types.ID, deliveries []delivery) {
	j := job{ctx: context.WithoutCancel(ctx), rideID: rideID, deliveries: deliveries}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		// late events after shutdown are delivered inline
		f.process(j)
		return
	}
	f.shards[shardOf(rideID, len(f.shards))] <- j
}

// Close stops accepting queued work and waits until every queued job is
// delivered or has exhausted its retries.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	for _, ch := range f.shards {
		close(ch)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Fanout) worker(ch <-chan job) {
	defer f.wg.Done()
	for j := range ch {
		f.process(j)
	}
}

func (f *Fanout) process(j job) {
	for _, d := range j.deliveries {
		n := d.n
		if err := f.retry(j.ctx, func(ctx context.Context) error { return f.store.Create(ctx, &n) }); err != nil {
			f.log.Error("store notification",
				logger.String("ride_id", j.rideID.String()),
				logger.String("recipient", n.Recipient.String()),
				logger.String("kind", string(n.Kind)),
				logger.Error(err),
			)
		}
		if err := f.retry(j.ctx, func(ctx context.Context) error { return f.pub.Publish(ctx, d.channel, d.payload) }); err != nil {
			f.log.Error("publish event",
				logger.String("ride_id", j.rideID.String()),
				logger.String("channel", d.channel),
				logger.Error(err),
			)
		}
	}
}

func (f *Fanout) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= f.opts.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * f.opts.Backoff)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		err = fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		f.log.Warning("delivery attempt failed", logger.Int("attempt", attempt+1), logger.Error(err))
	}
	return err
}

func shardOf(rideID types.ID, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(rideID))
	return int(h.Sum32() % uint32(n))
}
