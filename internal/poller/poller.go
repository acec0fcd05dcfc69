// Package poller drives the cell's periodic tick from a cron schedule.
package poller

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard 5-field expressions plus descriptors such
// as "@every 1m" and "@hourly".
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Ticker is the work run on each schedule fire.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Poller fires Tick on a schedule. A tick still running when the next fire
// arrives causes that fire to be skipped, and a panicking tick is recovered.
type Poller struct {
	cron   *cron.Cron
	ticker Ticker
	ctx    context.Context
	cancel context.CancelFunc
}

// ValidateSchedule reports whether spec parses.
func ValidateSchedule(spec string) error {
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("poller: invalid schedule %q: %w", spec, err)
	}
	return nil
}

// New creates a poller for spec. It does not start until Start is called.
func New(spec string, t Ticker) (*Poller, error) {
	logger := cron.PrintfLogger(log.New(os.Stderr, "poller: ", log.LstdFlags))
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)
	p := &Poller{cron: c, ticker: t}
	if _, err := c.AddFunc(spec, p.fire); err != nil {
		return nil, fmt.Errorf("poller: invalid schedule %q: %w", spec, err)
	}
	return p, nil
}

// Start begins firing ticks. Ticks receive a context derived from ctx.
func (p *Poller) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.cron.Start()
}

// Stop halts the schedule, cancels any running tick and waits for it to
// return.
func (p *Poller) Stop() {
	done := p.cron.Stop()
	if p.cancel != nil {
		p.cancel()
	}
	<-done.Done()
}

// RunOnce runs a single tick immediately, logging any error.
func (p *Poller) RunOnce(ctx context.Context) error {
	err := p.ticker.Tick(ctx)
	if err != nil {
		log.Printf("poller: tick: %v", err)
	}
	return err
}

func (p *Poller) fire() {
	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	p.RunOnce(ctx)
}
