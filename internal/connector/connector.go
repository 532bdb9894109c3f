// Package connector joins a Wi-Fi network through one of two NetworkManager
// code paths and reports the outcome through a callback.
package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"prefixjoin/gonetworkmanager"
	"prefixjoin/internal/candidate"
)

// Strategy selects the connection code path.
type Strategy int

const (
	// StrategyRequest asks NetworkManager to join the SSID directly and
	// reports asynchronously, like a scoped network request.
	StrategyRequest Strategy = iota
	// StrategyProfile (re)creates a saved profile and activates it.
	StrategyProfile
)

func (s Strategy) String() string {
	if s == StrategyProfile {
		return "profile"
	}
	return "request"
}

// ParseStrategy maps a config value onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "request":
		return StrategyRequest, nil
	case "profile":
		return StrategyProfile, nil
	default:
		return StrategyRequest, fmt.Errorf("unknown connect strategy %q (want request, profile or auto)", s)
	}
}

// Result is reported once per Connect call.
type Result struct {
	SSID string
	OK   bool
	Err  error
}

// NetworkManager is the subset of the nmcli client the connector needs.
type NetworkManager interface {
	WifiConnect(ctx context.Context, ssid, password, ifname string, hidden bool) (string, error)
	FindWifiProfileBySSID(ctx context.Context, ssid string) (gonetworkmanager.ConnectionProfile, error)
	ConnectionDelete(ctx context.Context, profileIdentifier string) (string, error)
	AddWifiConnection(ctx context.Context, p gonetworkmanager.WifiProfile) (string, error)
	ConnectionUp(ctx context.Context, profileIdentifier string) (string, error)
}

type Connector struct {
	nm       NetworkManager
	strategy Strategy
	ifname   string
	log      logrus.FieldLogger
}

func New(nm NetworkManager, strategy Strategy, ifname string, log logrus.FieldLogger) *Connector {
	return &Connector{nm: nm, strategy: strategy, ifname: ifname, log: log}
}

func (c *Connector) Strategy() Strategy { return c.strategy }

// Connect joins target with password and calls done exactly once.
// With StrategyRequest done runs on a separate goroutine; with StrategyProfile
// it runs before Connect returns. There is no retry and no timeout beyond ctx.
func (c *Connector) Connect(ctx context.Context, target candidate.Candidate, password string, done func(Result)) {
	log := c.log.WithFields(logrus.Fields{"ssid": target.SSID, "strategy": c.strategy.String()})
	if c.strategy == StrategyProfile {
		done(c.connectByProfile(ctx, target, password, log))
		return
	}
	go func() {
		done(c.connectByRequest(ctx, target, password, log))
	}()
}

// ConnectSync is Connect for callers that want to block on the result.
func (c *Connector) ConnectSync(ctx context.Context, target candidate.Candidate, password string) Result {
	ch := make(chan Result, 1)
	c.Connect(ctx, target, password, func(r Result) { ch <- r })
	return <-ch
}

func (c *Connector) connectByRequest(ctx context.Context, target candidate.Candidate, password string, log logrus.FieldLogger) Result {
	if target.Cipher == candidate.CipherNone {
		password = ""
	}
	log.Info("Requesting network")
	out, err := c.nm.WifiConnect(ctx, target.SSID, password, c.ifname, false)
	if err != nil {
		log.Warnf("Network unavailable: %v", err)
		return Result{SSID: target.SSID, OK: false, Err: err}
	}
	log.Infof("Network available: %s", out)
	return Result{SSID: target.SSID, OK: true}
}

func (c *Connector) connectByProfile(ctx context.Context, target candidate.Candidate, password string, log logrus.FieldLogger) Result {
	fail := func(err error) Result {
		log.Warnf("Profile connect failed: %v", err)
		return Result{SSID: target.SSID, OK: false, Err: err}
	}

	existing, err := c.nm.FindWifiProfileBySSID(ctx, target.SSID)
	if err != nil {
		return fail(err)
	}
	if existing != nil {
		id := gonetworkmanager.ProfileIdentifier(existing)
		log.Infof("Existing profile '%s' found, deleting and re-adding", id)
		if _, err := c.nm.ConnectionDelete(ctx, id); err != nil {
			log.Warnf("Failed to delete existing profile '%s': %v. Proceeding to add new.", id, err)
		}
	}

	profile := ProfileFor(target, password, c.ifname)
	if _, err := c.nm.AddWifiConnection(ctx, profile); err != nil {
		return fail(fmt.Errorf("could not create profile for %s: %w", target.SSID, err))
	}
	if _, err := c.nm.ConnectionUp(ctx, profile.Name); err != nil {
		return fail(fmt.Errorf("profile '%s' configured but activation failed: %w", profile.Name, err))
	}
	log.Info("Profile activated")
	return Result{SSID: target.SSID, OK: true}
}

// ProfileFor builds the saved-profile settings for target from its cipher.
func ProfileFor(target candidate.Candidate, password, ifname string) gonetworkmanager.WifiProfile {
	p := gonetworkmanager.WifiProfile{
		Name:      target.SSID,
		Interface: ifname,
		SSID:      target.SSID,
	}
	switch target.Cipher {
	case candidate.CipherWEP:
		p.KeyMgmt = gonetworkmanager.KeyMgmtWEP
		p.Password = password
		p.Hidden = true
	case candidate.CipherWPA:
		p.KeyMgmt = gonetworkmanager.KeyMgmtWPAPSK
		p.Password = password
		p.Hidden = true
	default:
		p.KeyMgmt = gonetworkmanager.KeyMgmtOpen
	}
	return p
}
