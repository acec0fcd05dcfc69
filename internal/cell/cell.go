// Package cell is the facade the API and CLI drive. It owns the stores, the
// controller and its lock, and publishes a fresh status after every change.
package cell

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zulandar/cellwatch/internal/alert"
	"github.com/zulandar/cellwatch/internal/config"
	"github.com/zulandar/cellwatch/internal/controller"
	"github.com/zulandar/cellwatch/internal/db"
	"github.com/zulandar/cellwatch/internal/decrement"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/planner"
	"github.com/zulandar/cellwatch/internal/status"
	"gorm.io/gorm"
)

var (
	// ErrUnknownQueue is returned when an operation names a queue the cell
	// does not declare.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
)

const alertTimeout = 10 * time.Second

// Cell coordinates one machining cell.
type Cell struct {
	name     string
	queues   map[string]bool
	lockWait time.Duration

	db       *gorm.DB
	log      *eventlog.Store
	jobs     *jobs.Store
	planner  *planner.Planner
	dec      *decrement.Engine
	ctrl     controller.Controller
	locker   controller.Locker
	notifier alert.Notifier
	now      func() time.Time

	// sem is a one-slot semaphore guarding the fields below. It serializes
	// mutations and is only taken after the controller lock.
	sem            chan struct{}
	lastObs        *controller.Observation
	faults         []string
	queueSyncFault bool
	tickFailing    bool

	pubMu   sync.Mutex
	subMu   sync.Mutex
	subs    map[int]chan *status.CurrentStatus
	nextSub int

	alerts sync.WaitGroup
}

// Deps are the collaborators a Cell is built from.
type Deps struct {
	DB         *gorm.DB
	Controller controller.Controller
	Locker     controller.Locker
	Notifier   alert.Notifier
}

// New assembles a Cell. The database must already be migrated.
func New(cfg *config.Config, d Deps) *Cell {
	logStore := eventlog.New(d.DB)
	jobStore := jobs.New(d.DB)
	notifier := d.Notifier
	if notifier == nil {
		notifier = alert.Multi{}
	}
	return &Cell{
		name:     cfg.Cell,
		queues:   cfg.QueueNames(),
		lockWait: cfg.Controller.Lock.Wait,
		db:       d.DB,
		log:      logStore,
		jobs:     jobStore,
		planner:  planner.New(logStore, jobStore, cfg.RoutePrefix),
		dec:      decrement.New(jobStore, logStore),
		ctrl:     d.Controller,
		locker:   d.Locker,
		notifier: notifier,
		now:      time.Now,
		sem:      make(chan struct{}, 1),
		subs:     map[int]chan *status.CurrentStatus{},
	}
}

// Open connects to the configured database, migrates it, and wires the
// configured controller, lock, and alert sinks.
func Open(cfg *config.Config) (*Cell, error) {
	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return nil, err
	}
	ctrl, err := controller.Open(cfg.Controller)
	if err != nil {
		return nil, err
	}
	locker, err := controller.OpenLocker(cfg.Controller.Lock, gdb)
	if err != nil {
		return nil, err
	}
	return New(cfg, Deps{
		DB:         gdb,
		Controller: ctrl,
		Locker:     locker,
		Notifier:   alert.FromConfig(cfg.Alerts),
	}), nil
}

// SetClock overrides the clock used for every recorded time.
func (c *Cell) SetClock(now func() time.Time) {
	c.sem <- struct{}{}
	defer c.unlock()
	c.now = now
	c.log.SetClock(now)
	c.jobs.SetClock(now)
}

// Controller returns the controller the cell drives.
func (c *Cell) Controller() controller.Controller {
	return c.ctrl
}

// Close waits for in-flight alerts and closes the database.
func (c *Cell) Close() error {
	c.alerts.Wait()
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// lock takes the cell semaphore or gives up when ctx is done.
func (c *Cell) lock(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cell) unlock() {
	<-c.sem
}

// locked runs fn holding the controller lock and then the cell semaphore.
// Waiting for the controller lock does not block status reads. When the
// lock cannot be acquired fn never runs and the error wraps
// controller.ErrBusy.
func (c *Cell) locked(ctx context.Context, fn func() error) error {
	release, err := c.locker.Acquire(ctx, c.lockWait)
	if err != nil {
		return fmt.Errorf("cell: %w", err)
	}
	defer release()
	if err := c.lock(ctx); err != nil {
		return fmt.Errorf("cell: %w", err)
	}
	defer c.unlock()
	return fn()
}

// mutate applies fn and then re-plans so the new state reaches the cell
// and subscribers. A failed re-plan after a successful mutation is logged;
// the next tick retries it.
func (c *Cell) mutate(ctx context.Context, fn func() error) error {
	err := c.locked(ctx, func() error {
		if err := fn(); err != nil {
			return err
		}
		if err := c.planLocked(ctx); err != nil {
			log.Printf("cell: replan after change: %v", err)
		}
		return nil
	})
	if err != nil {
		logInvariant(err)
		return err
	}
	c.publish(ctx)
	return nil
}

// Tick reads the controller, logs what changed, and writes any new routes.
func (c *Cell) Tick(ctx context.Context) error {
	err := c.locked(ctx, func() error {
		err := c.planLocked(ctx)
		c.tickResult(err)
		return err
	})
	if err != nil {
		logInvariant(err)
		return err
	}
	c.publish(ctx)
	return nil
}

// planLocked runs one planning pass. The caller holds both locks.
func (c *Cell) planLocked(ctx context.Context) error {
	obs, err := c.ctrl.ReadStatus(ctx)
	if err != nil {
		return fmt.Errorf("cell: read status: %w", err)
	}
	res, err := c.planner.Plan(obs)
	if err != nil {
		return err
	}
	for _, w := range res.Writes {
		if err := c.ctrl.WriteRoute(ctx, w); err != nil {
			return fmt.Errorf("cell: write route for pallet %s: %w", w.Pallet, err)
		}
		if err := c.planner.Commit(w.Pallet, res); err != nil {
			return err
		}
	}
	if len(res.NewEntries) > 0 {
		if err := c.ctrl.ReportNewEntries(ctx, res.NewEntries); err != nil {
			log.Printf("cell: report %d entries to %s: %v", len(res.NewEntries), c.ctrl.Name(), err)
		}
	}
	if len(res.Writes) > 0 {
		if fresh, err := c.ctrl.ReadStatus(ctx); err == nil {
			obs = fresh
		}
	}
	c.lastObs = obs
	c.faults = res.Faults
	if res.QueueSyncFault && !c.queueSyncFault {
		c.raise(alert.KindQueueSync, fmt.Sprintf("%v", res.Faults))
	}
	c.queueSyncFault = res.QueueSyncFault
	return nil
}

func (c *Cell) tickResult(err error) {
	if err == nil {
		c.tickFailing = false
		return
	}
	if !c.tickFailing {
		c.raise(alert.KindTick, err.Error())
	}
	c.tickFailing = true
}

// raise sends a fault to the alert sinks without blocking the caller.
func (c *Cell) raise(kind, msg string) {
	f := alert.Fault{Cell: c.name, Kind: kind, Message: msg, Time: c.now()}
	c.alerts.Add(1)
	go func() {
		defer c.alerts.Done()
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := c.notifier.Notify(ctx, f); err != nil {
			log.Printf("cell: alert %s: %v", kind, err)
		}
	}()
}

func logInvariant(err error) {
	if errors.Is(err, eventlog.ErrInvariant) {
		log.Printf("cell: INVARIANT VIOLATION: %v", err)
	}
}

// Subscribe returns a channel receiving a status after every change. Only
// the most recent status is buffered; a slow reader skips intermediate
// ones. The returned func unsubscribes and closes the channel.
func (c *Cell) Subscribe() (<-chan *status.CurrentStatus, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan *status.CurrentStatus, 1)
	c.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Cell) publish(ctx context.Context) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.subMu.Lock()
	n := len(c.subs)
	c.subMu.Unlock()
	if n == 0 {
		return
	}
	st, err := c.GetCurrentStatus(ctx)
	if err != nil {
		log.Printf("cell: build status: %v", err)
		return
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}
