// Package radio watches the Wi-Fi radio and reports state changes.
package radio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"prefixjoin/gonetworkmanager"
)

type State int

const (
	StateUnknown State = iota
	StateDisabling
	StateDisabled
	StateEnabling
	StateEnabled
)

func (s State) String() string {
	switch s {
	case StateDisabling:
		return "Wi-Fi is turning off"
	case StateDisabled:
		return "Wi-Fi is off"
	case StateEnabling:
		return "Wi-Fi is turning on"
	case StateEnabled:
		return "Wi-Fi is on"
	default:
		return "unknown"
	}
}

var ErrMonitorExited = errors.New("radio watcher: activity monitor exited")

// Event is published whenever the observed state changes.
type Event struct {
	State State
}

// Radio queries and switches the Wi-Fi radio.
type Radio interface {
	WifiEnabled(ctx context.Context) (bool, error)
	WifiEnable(ctx context.Context) (string, error)
	WifiDisable(ctx context.Context) (string, error)
}

// Monitor streams NetworkManager activity lines into w until stopped.
type Monitor interface {
	ActivityMonitor(ctx context.Context, w io.Writer) (gonetworkmanager.StopActivityMonitorFn, error)
}

// Watcher turns monitor activity into radio state events.
type Watcher struct {
	radio   Radio
	monitor Monitor
	log     logrus.FieldLogger
	events  chan Event

	mu     sync.Mutex
	state  State
	closed bool
}

func NewWatcher(radio Radio, monitor Monitor, log logrus.FieldLogger) *Watcher {
	return &Watcher{
		radio:   radio,
		monitor: monitor,
		log:     log,
		events:  make(chan Event, 8),
	}
}

// Events is closed when Run returns.
func (w *Watcher) Events() <-chan Event { return w.events }

// State returns the last observed state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Run blocks until ctx is done or the monitor stream ends. It returns
// ErrMonitorExited in the latter case.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.mu.Lock()
		w.closed = true
		close(w.events)
		w.mu.Unlock()
	}()

	w.Refresh(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	stop, err := w.monitor.ActivityMonitor(runCtx, pw)
	if err != nil {
		pw.Close()
		return fmt.Errorf("radio watcher: %w", err)
	}

	go func() {
		<-runCtx.Done()
		if err := stop(); err != nil {
			w.log.Debugf("nmcli monitor exited: %v", err)
		}
		pw.Close()
	}()

	scanner := bufio.NewScanner(pr)
	for scanner.Scan() {
		w.log.Debugf("monitor: %s", scanner.Text())
		w.Refresh(ctx)
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("radio watcher: reading monitor: %w", err)
	}
	return ErrMonitorExited
}

// Refresh re-queries the radio and publishes an event if the state changed.
func (w *Watcher) Refresh(ctx context.Context) {
	enabled, err := w.radio.WifiEnabled(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warnf("Could not query Wi-Fi radio: %v", err)
		}
		w.publish(StateUnknown)
		return
	}
	if enabled {
		w.publish(StateEnabled)
	} else {
		w.publish(StateDisabled)
	}
}

// Toggle switches the radio, publishing the transitional state first.
func (w *Watcher) Toggle(ctx context.Context, enable bool) error {
	var err error
	if enable {
		w.publish(StateEnabling)
		_, err = w.radio.WifiEnable(ctx)
	} else {
		w.publish(StateDisabling)
		_, err = w.radio.WifiDisable(ctx)
	}
	if err != nil {
		w.Refresh(ctx)
		return fmt.Errorf("toggling Wi-Fi radio: %w", err)
	}
	return nil
}

func (w *Watcher) publish(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == s {
		return
	}
	w.state = s
	w.log.Infof("Wi-Fi radio state: %s", s)
	if w.closed {
		return
	}
	select {
	case w.events <- Event{State: s}:
	default:
		w.log.Warnf("Dropping radio event %s, receiver is not keeping up", s)
	}
}
