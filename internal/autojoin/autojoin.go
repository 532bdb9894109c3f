// Package autojoin runs the auto-connect flow and owns the screen state.
package autojoin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"prefixjoin/gonetworkmanager"
	"prefixjoin/internal/candidate"
	"prefixjoin/internal/connector"
	"prefixjoin/internal/radio"
)

var ErrPermissionDenied = errors.New("not permitted to scan Wi-Fi networks")

// Network is the NetworkManager surface used before connecting.
type Network interface {
	GetPermissions(ctx context.Context) (map[string]string, error)
	WifiEnabled(ctx context.Context) (bool, error)
	WifiEnable(ctx context.Context) (string, error)
	GetWifiList(ctx context.Context, rescan bool) ([]gonetworkmanager.WifiAccessPoint, error)
}

// Connector joins a single network.
type Connector interface {
	Connect(ctx context.Context, target candidate.Candidate, password string, done func(connector.Result))
}

// Options are the tunables of an auto-connect attempt.
type Options struct {
	Prefix          string
	Password        string
	AutoEnableRadio bool
	Rescan          bool
}

// StepKind tells the caller what AutoConnect left to do.
type StepKind int

const (
	StepFailed StepKind = iota
	StepNeedPermission
	StepRadioDisabled
	StepConnect
	StepPick
)

type Step struct {
	Kind   StepKind
	Target candidate.Candidate
	Err    error
}

// State is the observable screen state.
type State struct {
	Candidates  []candidate.Candidate
	InProgress  bool
	MoreThanOne bool
	Message     string
}

const (
	MsgAutoConnecting   = "Auto-connecting..."
	MsgNoPermission     = "Not permitted to scan Wi-Fi. Grant NetworkManager permission and retry."
	MsgRadioOff         = "Please turn Wi-Fi on"
	MsgConnectOK        = "Auto-connect succeeded"
	MsgConnectFailed    = "Auto-connect failed, try auto connect again or connect manually"
	msgPickFormat       = "Several networks starting with %s found, pick one"
	msgNoneFormat       = "No networks starting with %s found"
	msgConnectingFormat = "Connecting to %s..."
)

type Controller struct {
	net  Network
	conn Connector
	opts Options
	log  logrus.FieldLogger

	mu    sync.Mutex
	state State
}

func New(net Network, conn Connector, opts Options, log logrus.FieldLogger) *Controller {
	return &Controller{net: net, conn: conn, opts: opts, log: log}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Candidates = append([]candidate.Candidate(nil), c.state.Candidates...)
	return s
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

// AutoConnect resets the state and runs one attempt up to the point where a
// connection is started or the user has to act.
func (c *Controller) AutoConnect(ctx context.Context) Step {
	c.update(func(s *State) {
		*s = State{InProgress: true, Message: MsgAutoConnecting}
	})

	if err := c.checkPermission(ctx); err != nil {
		c.log.Warnf("Permission check failed: %v", err)
		c.update(func(s *State) { s.Message = MsgNoPermission })
		return Step{Kind: StepNeedPermission, Err: err}
	}

	enabled, err := c.net.WifiEnabled(ctx)
	if err != nil {
		return c.fail(fmt.Errorf("reading Wi-Fi radio state: %w", err))
	}
	c.log.Debugf("Wi-Fi enabled: %t", enabled)
	if !enabled {
		c.update(func(s *State) { s.Message = MsgRadioOff })
		if c.opts.AutoEnableRadio {
			if _, err := c.net.WifiEnable(ctx); err != nil {
				c.log.Warnf("Could not enable Wi-Fi radio: %v", err)
			}
		}
		return Step{Kind: StepRadioDisabled}
	}

	aps, err := c.net.GetWifiList(ctx, c.opts.Rescan)
	if err != nil {
		return c.fail(fmt.Errorf("scanning Wi-Fi networks: %w", err))
	}
	results := ScanResults(aps)
	for _, r := range results {
		c.log.Debugf("scan: %s ==> %d", r.SSID, r.Signal)
	}

	decision := candidate.Decide(candidate.Select(results, c.opts.Prefix))
	switch decision.Kind {
	case candidate.DecisionConnect:
		c.log.Infof("Exactly one network starting with %s, connecting to %s", c.opts.Prefix, decision.Target.SSID)
		c.update(func(s *State) {
			s.MoreThanOne = false
			s.Candidates = decision.Candidates
			s.Message = fmt.Sprintf(msgConnectingFormat, decision.Target.SSID)
		})
		return Step{Kind: StepConnect, Target: decision.Target}
	default:
		c.log.Infof("%d networks starting with %s, asking the user", len(decision.Candidates), c.opts.Prefix)
		msg := fmt.Sprintf(msgPickFormat, c.opts.Prefix)
		if decision.Kind == candidate.DecisionNone {
			msg = fmt.Sprintf(msgNoneFormat, c.opts.Prefix)
		}
		c.update(func(s *State) {
			s.MoreThanOne = true
			s.Candidates = decision.Candidates
			s.Message = msg
		})
		return Step{Kind: StepPick}
	}
}

func (c *Controller) checkPermission(ctx context.Context) error {
	perms, err := c.net.GetPermissions(ctx)
	if err != nil {
		return err
	}
	for _, p := range []string{gonetworkmanager.PermissionWifiScan, gonetworkmanager.PermissionNetworkControl} {
		if perms[p] == "no" {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, p)
		}
	}
	return nil
}

func (c *Controller) fail(err error) Step {
	c.log.Errorf("Auto-connect aborted: %v", err)
	c.update(func(s *State) {
		s.InProgress = false
		s.Message = MsgConnectFailed
	})
	return Step{Kind: StepFailed, Err: err}
}

// Connect joins target with the configured password. done is called after
// the state has been updated, possibly from another goroutine.
func (c *Controller) Connect(ctx context.Context, target candidate.Candidate, done func(connector.Result)) {
	c.log.Infof("Selected %s, connecting", target.SSID)
	c.update(func(s *State) {
		s.InProgress = true
		s.Message = fmt.Sprintf(msgConnectingFormat, target.SSID)
	})
	c.conn.Connect(ctx, target, c.opts.Password, func(r connector.Result) {
		c.Finish(r)
		if done != nil {
			done(r)
		}
	})
}

// Finish records the outcome of a connection attempt.
func (c *Controller) Finish(r connector.Result) {
	c.log.Infof("Auto-connect result for %s: %t", r.SSID, r.OK)
	c.update(func(s *State) {
		if r.OK {
			s.Message = MsgConnectOK
		} else {
			s.Message = MsgConnectFailed
		}
		s.InProgress = false
	})
}

// OnRadio reports whether a radio state change should re-trigger AutoConnect.
func (c *Controller) OnRadio(st radio.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return st == radio.StateEnabled && c.state.InProgress
}

// ScanResults converts nmcli access points into scan results, dropping hidden networks.
func ScanResults(aps []gonetworkmanager.WifiAccessPoint) []candidate.ScanResult {
	results := make([]candidate.ScanResult, 0, len(aps))
	for _, ap := range aps {
		ssid := ap.SSID()
		if ssid == "" {
			continue
		}
		results = append(results, candidate.ScanResult{
			SSID:         ssid,
			BSSID:        ap[gonetworkmanager.NmcliFieldWifiBSSID],
			Signal:       ap.Signal(),
			Capabilities: ap.Security(),
		})
	}
	return results
}
