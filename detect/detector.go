package detect

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/brailleworks/brlscan/hotplug"
	"github.com/brailleworks/brlscan/registry"
)

// DefaultPollInterval is how often cached Bluetooth candidates are retried
// while none of them activate.
const DefaultPollInterval = 5 * time.Second

// ErrTerminated is returned by lifecycle operations invoked after Terminate.
var ErrTerminated = errors.New("detector terminated")

// Options configure a Detector. The zero value of each field selects a
// default.
type Options struct {
	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration
	// Clock drives the Bluetooth retry timer. Defaults to the wall clock;
	// tests substitute a mock.
	Clock clock.Clock
	// Logger receives scan progress and per-candidate failures.
	Logger golog.Logger
}

// Detector automatically detects devices in the background. A single worker
// goroutine runs scan passes, USB first and then Bluetooth, handing each
// candidate to the activator until one claims its device. While Bluetooth
// candidates exist but none activate, the cached candidates are retried on a
// poll timer without re-enumerating. Rescan and Terminate may be called from
// any goroutine; they only signal the worker and never touch scan state
// directly.
type Detector struct {
	engine    *Engine
	activator Activator
	notifier  hotplug.Notifier

	logger       golog.Logger
	clock        clock.Clock
	pollInterval time.Duration

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
	requests                chan scanRequest

	mu         sync.Mutex
	terminated bool
	passCancel func()
	hotplugReg hotplug.Registration
}

// A scanRequest asks the worker to run one pass. Its context cancels the
// pass, and any retries the pass schedules, without stopping the worker.
type scanRequest struct {
	ctx        context.Context
	usb        bool
	bluetooth  bool
	resetCache bool
}

// scanState is owned exclusively by the worker goroutine.
type scanState struct {
	scanUSB       bool
	scanBluetooth bool

	// btCandidates is the Bluetooth candidate cache. Once btCached is set
	// the cache is reused across poll retries and is only discarded by a
	// rescan.
	btCached     bool
	btCandidates []Candidate

	// passCtx is the cancellation token of the most recent pass; poll
	// retries run under it.
	passCtx      context.Context
	retryPending bool
}

// New returns a detector scanning devices listed by enum against reg and
// handing candidates to activator. If notifier is non-nil the detector
// registers a rescan callback with it until terminated. No scan runs until
// Start or Rescan is called.
func New(
	reg *registry.Registry,
	enum HardwareEnumerator,
	activator Activator,
	notifier hotplug.Notifier,
	opts Options,
) *Detector {
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = golog.Global()
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	d := &Detector{
		engine:       NewEngine(reg, enum, opts.Logger),
		activator:    activator,
		notifier:     notifier,
		logger:       opts.Logger,
		clock:        opts.Clock,
		pollInterval: opts.PollInterval,
		cancelCtx:    cancelCtx,
		cancelFunc:   cancelFunc,
		requests:     make(chan scanRequest, 1),
	}
	if notifier != nil {
		d.hotplugReg = notifier.Register(func() {
			if err := d.Rescan(); err != nil {
				d.logger.Debugw("hotplug rescan skipped", "error", err)
			}
		})
	}
	d.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer d.activeBackgroundWorkers.Done()
		d.worker()
	})
	return d
}

// Engine returns the match engine, for on-demand device queries outside the
// background scan loop.
func (d *Detector) Engine() *Engine {
	return d.engine
}

// Start triggers the initial full scan.
func (d *Detector) Start() error {
	return d.startScan(true, true, true)
}

// Rescan stops any scan in progress, discards the Bluetooth candidate cache
// and starts scanning from scratch.
func (d *Detector) Rescan() error {
	return d.startScan(true, true, true)
}

// startScan cancels the in-flight pass, if any, and hands a fresh pass
// request to the worker. A pending not-yet-started request is superseded.
func (d *Detector) startScan(usb, bluetooth, resetCache bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.terminated {
		return ErrTerminated
	}
	if d.passCancel != nil {
		d.passCancel()
	}
	passCtx, passCancel := context.WithCancel(d.cancelCtx)
	d.passCancel = passCancel
	req := scanRequest{ctx: passCtx, usb: usb, bluetooth: bluetooth, resetCache: resetCache}
	for {
		select {
		case d.requests <- req:
			return nil
		default:
			// Drop the superseded pending request; its context is
			// already cancelled.
			select {
			case <-d.requests:
			default:
			}
		}
	}
}

// Terminate unregisters from the hotplug notifier, cancels any scan in
// progress along with its retry timer, and waits for the worker to exit.
// Further lifecycle calls return ErrTerminated.
func (d *Detector) Terminate() error {
	d.mu.Lock()
	if d.terminated {
		d.mu.Unlock()
		return ErrTerminated
	}
	d.terminated = true
	passCancel := d.passCancel
	d.mu.Unlock()

	var err error
	if d.notifier != nil {
		if uerr := d.notifier.Unregister(d.hotplugReg); uerr != nil {
			err = multierr.Combine(err, errors.Wrap(uerr, "unregistering hotplug callback"))
		}
	}
	if passCancel != nil {
		passCancel()
	}
	d.cancelFunc()
	d.activeBackgroundWorkers.Wait()
	return err
}

// worker serializes all scan passes. It owns the scan state and the poll
// timer; nothing else reads or writes either.
func (d *Detector) worker() {
	state := &scanState{}
	var timer *clock.Timer
	var timerC <-chan time.Time
	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timerC:
			default:
			}
		}
		timer = nil
		timerC = nil
	}
	defer stopTimer()

	for {
		select {
		case <-d.cancelCtx.Done():
			return
		case req := <-d.requests:
			stopTimer()
			if req.resetCache {
				state.btCached = false
				state.btCandidates = nil
			}
			state.scanUSB = req.usb
			state.scanBluetooth = req.bluetooth
			d.runPass(req.ctx, state)
		case <-timerC:
			timer = nil
			timerC = nil
			state.scanUSB = false
			state.scanBluetooth = true
			d.runPass(state.passCtx, state)
		}
		if state.retryPending {
			state.retryPending = false
			stopTimer()
			timer = d.clock.Timer(d.pollInterval)
			timerC = timer.C
		}
	}
}

// runPass executes one scan pass per the requested channels. Cancellation is
// cooperative: the pass context is checked before every enumeration and
// before every activation attempt, but an in-flight activation is allowed to
// finish.
func (d *Detector) runPass(ctx context.Context, state *scanState) {
	state.passCtx = ctx
	state.retryPending = false

	if state.scanUSB {
		candidates, err := d.engine.ConnectedUSBCandidates(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.logger.Errorw("usb scan failed", "error", err)
			}
			return
		}
		for _, c := range candidates {
			if ctx.Err() != nil {
				return
			}
			if d.tryActivate(ctx, c) {
				// Claimed; the pass is over, skip Bluetooth.
				return
			}
		}
	}

	if !state.scanBluetooth {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if !state.btCached {
		ports, err := d.engine.enum.SerialPorts(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.logger.Errorw("bluetooth scan failed", "error", err)
			}
			return
		}
		// Mark the cache live before filling it so that candidates found
		// ahead of a cancellation are kept for the next retry.
		state.btCached = true
		for _, rec := range bluetoothRecords(ports) {
			if ctx.Err() != nil {
				return
			}
			for _, driver := range d.engine.reg.Drivers() {
				sig, err := d.engine.reg.Lookup(driver)
				if err != nil {
					continue
				}
				matcher := sig.BluetoothMatcher()
				if matcher == nil {
					continue
				}
				if d.engine.safeMatch(driver, matcher, rec) {
					state.btCandidates = append(state.btCandidates, Candidate{Driver: driver, Device: rec})
				}
			}
		}
	}
	for _, c := range state.btCandidates {
		if ctx.Err() != nil {
			return
		}
		if d.tryActivate(ctx, c) {
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	if len(state.btCandidates) != 0 {
		// Possible devices remain; poll them again later.
		state.retryPending = true
	}
}

// tryActivate hands one candidate to the activator. A panicking activator is
// treated as a failed activation so the remaining candidates still get
// tried.
func (d *Detector) tryActivate(ctx context.Context, c Candidate) (activated bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("driver activation panicked",
				"driver", c.Driver, "device", c.Device.ID, "error", r)
			activated = false
		}
	}()
	if d.activator.Activate(ctx, c.Driver, c.Device) {
		d.logger.Infow("device activated", "driver", c.Driver, "device", c.Device.ID)
		return true
	}
	return false
}
