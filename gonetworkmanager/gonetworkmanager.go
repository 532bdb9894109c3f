// Package gonetworkmanager drives NetworkManager through the nmcli command line client.
package gonetworkmanager

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// --- Constants for nmcli field names ---
const (
	NmcliFieldConnectionName   = "NAME"
	NmcliFieldConnectionUUID   = "UUID"
	NmcliFieldConnectionType   = "TYPE"
	NmcliFieldConnectionDevice = "DEVICE"
	NmcliFieldWifiSSID         = "SSID"
	NmcliFieldWifiBSSID        = "BSSID"
	NmcliFieldWifiSignal       = "SIGNAL"
	NmcliFieldWifiSecurity     = "SECURITY"
	NmcliFieldWifiInUse        = "IN-USE"

	ConnectionTypeWifi      = "802-11-wireless"
	connectionTypeWifiShort = "wifi"

	wifiSecKeyMgmt     = "wifi-sec.key-mgmt"
	wifiSecPSK         = "wifi-sec.psk"
	wifiSecWEPKey0     = "wifi-sec.wep-key0"
	wifiSecAuthAlg     = "wifi-sec.auth-alg"
	wifiHidden         = "802-11-wireless.hidden"
	keyMgmtWPAPSK      = "wpa-psk"
	keyMgmtNone        = "none"
	authAlgOpen        = "open"
	eightZeroTwo11SSID = "802-11-wireless.ssid"

	// Permission names reported by `nmcli general permissions`.
	PermissionWifiScan       = "org.freedesktop.NetworkManager.wifi.scan"
	PermissionNetworkControl = "org.freedesktop.NetworkManager.network-control"
	PermissionEnableWifi     = "org.freedesktop.NetworkManager.enable-disable-wifi"
	PermissionModifySystem   = "org.freedesktop.NetworkManager.settings.modify.system"

	wifiListFields = NmcliFieldWifiInUse + "," + NmcliFieldWifiBSSID + "," + NmcliFieldWifiSSID + "," +
		NmcliFieldWifiSignal + "," + NmcliFieldWifiSecurity
	profileListFields = NmcliFieldConnectionName + "," + NmcliFieldConnectionUUID + "," +
		NmcliFieldConnectionType + "," + NmcliFieldConnectionDevice
)

var (
	ErrEmptySSID       = errors.New("SSID cannot be empty")
	ErrEmptyIdentifier = errors.New("profile identifier cannot be empty")
	ErrNmcliNotFound   = errors.New("'nmcli' is not installed or not found in PATH")
)

// --- Type Definitions ---
type ConnectionProfile map[string]string
type WifiAccessPoint map[string]string
type StopActivityMonitorFn func() error

// KeyMgmt selects the security block written into a new Wi-Fi profile.
type KeyMgmt int

const (
	KeyMgmtOpen KeyMgmt = iota
	KeyMgmtWEP
	KeyMgmtWPAPSK
)

// WifiProfile describes a profile created by AddWifiConnection.
type WifiProfile struct {
	Name      string
	Interface string
	SSID      string
	Password  string
	KeyMgmt   KeyMgmt
	Hidden    bool
}

// Runner executes nmcli with the given arguments and returns trimmed stdout.
type Runner func(ctx context.Context, args ...string) (string, error)

// Starter launches a long-running nmcli invocation whose output goes to w.
// The returned wait blocks until the process has exited.
type Starter func(ctx context.Context, w io.Writer, args ...string) (wait func() error, err error)

// Client issues nmcli commands. The zero value is not usable; use New.
type Client struct {
	run   Runner
	start Starter
	log   logrus.FieldLogger
}

// New returns a Client backed by the nmcli binary found in PATH.
func New(log logrus.FieldLogger) *Client {
	c := &Client{start: startNmcli, log: log}
	c.run = c.execNmcli
	return c
}

// NewWithRunner returns a Client that sends every one-shot invocation to run.
// Long-running commands still start the nmcli binary.
func NewWithRunner(run Runner, log logrus.FieldLogger) *Client {
	return &Client{run: run, start: startNmcli, log: log}
}

// NewWithStarter is NewWithRunner with long-running commands sent to start.
func NewWithStarter(run Runner, start Starter, log logrus.FieldLogger) *Client {
	return &Client{run: run, start: start, log: log}
}

// CheckAvailable reports whether nmcli can be executed.
func CheckAvailable() error {
	if _, err := exec.LookPath("nmcli"); err != nil {
		return ErrNmcliNotFound
	}
	return nil
}

// --- Core nmcli Interaction ---
func parseNmcliMultilineOutput(output string) ([]map[string]string, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return []map[string]string{}, nil
	}
	lines := strings.Split(output, "\n")
	var records []map[string]string
	var currentRecord map[string]string
	var firstKeyOfRecord string
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		trimmedLine := strings.TrimLeft(strings.TrimRight(line, "\r"), " \t")
		parts := strings.SplitN(trimmedLine, ":", 2)
		if len(parts) != 2 {
			if i == 0 && !strings.Contains(trimmedLine, ":") {
				continue
			}
			return nil, fmt.Errorf("malformed line in multiline output: %q", trimmedLine)
		}
		key := strings.TrimSpace(parts[0])
		// Only trim leading whitespace from the value to preserve trailing spaces in SSIDs.
		value := strings.TrimLeft(parts[1], " \t")
		if key == "" {
			return nil, fmt.Errorf("empty key for value: %q", value)
		}
		if currentRecord == nil {
			currentRecord = make(map[string]string)
			firstKeyOfRecord = key
		} else if key == firstKeyOfRecord && len(currentRecord) > 0 {
			records = append(records, currentRecord)
			currentRecord = make(map[string]string)
		}
		currentRecord[key] = value
	}
	if len(currentRecord) > 0 {
		records = append(records, currentRecord)
	}
	return records, nil
}

// parseTerseOutput splits `nmcli -t` lines into key/value pairs on the first
// unescaped colon.
func parseTerseOutput(output string) map[string]string {
	result := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := splitTerse(line)
		if !ok {
			continue
		}
		result[key] = value
	}
	return result
}

func splitTerse(line string) (string, string, bool) {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case ':':
			return unescapeTerse(line[:i]), unescapeTerse(line[i+1:]), true
		}
	}
	return "", "", false
}

func unescapeTerse(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func (c *Client) execNmcli(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "nmcli", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	c.log.Debugf("Executing nmcli command: %v", redactArgs(cmd.Args))
	err := cmd.Run()
	stderrStr := strings.TrimSpace(stderr.String())
	stdoutStr := strings.TrimSpace(stdout.String())
	joined := strings.Join(redactArgs(args), " ")
	if err != nil {
		if stderrStr != "" {
			c.log.Debugf("nmcli command '%s' stderr: %s", joined, stderrStr)
			return stdoutStr, fmt.Errorf("nmcli command '%s' failed: %s (underlying error: %w)", joined, stderrStr, err)
		}
		return stdoutStr, fmt.Errorf("nmcli command '%s' failed: %w", joined, err)
	}
	if stderrStr != "" {
		c.log.Warnf("nmcli command '%s' succeeded but produced stderr: %s", joined, stderrStr)
	}
	return stdoutStr, nil
}

// redactArgs hides the value following any secret-bearing argument.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		switch out[i] {
		case "password", wifiSecPSK, wifiSecWEPKey0:
			out[i+1] = "******"
		}
	}
	return out
}

func (c *Client) cli(ctx context.Context, args ...string) (string, error) {
	return c.run(ctx, args...)
}

func (c *Client) clib(ctx context.Context, args ...string) ([]map[string]string, error) {
	output, err := c.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("nmcli for multiline failed (args: %v): %w", redactArgs(args), err)
	}
	return parseNmcliMultilineOutput(output)
}

// --- General ---

// GetPermissions returns the caller's NetworkManager permissions keyed by name.
// Values are "yes", "no", "auth" or "unknown".
func (c *Client) GetPermissions(ctx context.Context) (map[string]string, error) {
	output, err := c.cli(ctx, "-t", "-f", "PERMISSION,VALUE", "general", "permissions")
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions: %w", err)
	}
	return parseTerseOutput(output), nil
}

// ActivityMonitor streams `nmcli monitor` output into writer until stopped.
// When the monitor exits on its own and writer is an io.Closer, writer is
// closed so readers see the end of the stream.
func (c *Client) ActivityMonitor(ctx context.Context, writer io.Writer) (StopActivityMonitorFn, error) {
	monitorCtx, cancelMonitorCmd := context.WithCancel(ctx)
	wait, err := c.start(monitorCtx, writer, "monitor")
	if err != nil {
		cancelMonitorCmd()
		return nil, fmt.Errorf("failed to start 'nmcli monitor': %w", err)
	}
	done := make(chan error, 1)
	go func() {
		err := monitorExitError(wait())
		cancelMonitorCmd()
		closeWriter(writer, err)
		done <- err
	}()

	var once sync.Once
	var stopErr error
	stopFn := func() error {
		once.Do(func() {
			cancelMonitorCmd()
			stopErr = <-done
		})
		return stopErr
	}
	return stopFn, nil
}

func startNmcli(ctx context.Context, w io.Writer, args ...string) (func() error, error) {
	cmd := exec.CommandContext(ctx, "nmcli", args...)
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Wait, nil
}

// monitorExitError drops the error of a monitor killed by a termination signal.
func monitorExitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() && (status.Signal() == syscall.SIGKILL || status.Signal() == syscall.SIGTERM || status.Signal() == syscall.SIGINT) {
				return nil
			}
		}
	}
	return err
}

func closeWriter(w io.Writer, err error) {
	if pw, ok := w.(*io.PipeWriter); ok {
		pw.CloseWithError(err)
		return
	}
	if cl, ok := w.(io.Closer); ok {
		cl.Close()
	}
}

// --- Connection profiles ---

// ConnectionUp activates a connection profile.
func (c *Client) ConnectionUp(ctx context.Context, profileIdentifier string) (string, error) {
	if strings.TrimSpace(profileIdentifier) == "" {
		return "", ErrEmptyIdentifier
	}
	return c.cli(ctx, "connection", "up", profileIdentifier)
}

// ConnectionDown deactivates a connection profile.
func (c *Client) ConnectionDown(ctx context.Context, profileIdentifier string) (string, error) {
	if strings.TrimSpace(profileIdentifier) == "" {
		return "", ErrEmptyIdentifier
	}
	return c.cli(ctx, "connection", "down", profileIdentifier)
}

// ConnectionDelete deletes a connection profile.
func (c *Client) ConnectionDelete(ctx context.Context, profileIdentifier string) (string, error) {
	if strings.TrimSpace(profileIdentifier) == "" {
		return "", ErrEmptyIdentifier
	}
	return c.cli(ctx, "connection", "delete", profileIdentifier)
}

// GetConnectionProfilesList lists connection profiles.
func (c *Client) GetConnectionProfilesList(ctx context.Context, activeOnly bool) ([]ConnectionProfile, error) {
	args := []string{"-m", "multiline", "-f", profileListFields, "connection", "show", "--order", "name"}
	if activeOnly {
		args = append(args, "--active")
	}
	rawProfiles, err := c.clib(ctx, args...)
	if err != nil {
		return nil, err
	}
	profiles := make([]ConnectionProfile, len(rawProfiles))
	for i, rp := range rawProfiles {
		profiles[i] = ConnectionProfile(rp)
	}
	return profiles, nil
}

// GetProfileSSID reads the 802-11-wireless.ssid setting of a saved profile.
func (c *Client) GetProfileSSID(ctx context.Context, profileIdentifier string) (string, error) {
	if strings.TrimSpace(profileIdentifier) == "" {
		return "", ErrEmptyIdentifier
	}
	return c.cli(ctx, "-g", eightZeroTwo11SSID, "connection", "show", profileIdentifier)
}

// FindWifiProfileBySSID returns the first saved Wi-Fi profile whose SSID
// matches, or nil when there is none.
func (c *Client) FindWifiProfileBySSID(ctx context.Context, ssid string) (ConnectionProfile, error) {
	if ssid == "" {
		return nil, ErrEmptySSID
	}
	profiles, err := c.GetConnectionProfilesList(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("could not list profiles to check for existing: %w", err)
	}
	for _, p := range profiles {
		if !IsWifiProfile(p) {
			continue
		}
		id := ProfileIdentifier(p)
		profileSSID, err := c.GetProfileSSID(ctx, id)
		if err != nil {
			c.log.Warnf("Could not read SSID of profile '%s': %v", id, err)
			continue
		}
		if profileSSID == ssid {
			p[NmcliFieldWifiSSID] = profileSSID
			return p, nil
		}
	}
	return nil, nil
}

// IsWifiProfile reports whether a profile row describes a Wi-Fi connection.
func IsWifiProfile(p ConnectionProfile) bool {
	t := p[NmcliFieldConnectionType]
	return t == ConnectionTypeWifi || t == connectionTypeWifiShort
}

// ProfileIdentifier prefers the UUID and falls back to the profile name.
func ProfileIdentifier(p ConnectionProfile) string {
	if uuid := p[NmcliFieldConnectionUUID]; uuid != "" {
		return uuid
	}
	return p[NmcliFieldConnectionName]
}

// --- Wi-Fi ---

func (c *Client) WifiEnable(ctx context.Context) (string, error) {
	return c.cli(ctx, "radio", "wifi", "on")
}

func (c *Client) WifiDisable(ctx context.Context) (string, error) {
	return c.cli(ctx, "radio", "wifi", "off")
}

func (c *Client) GetWifiStatus(ctx context.Context) (string, error) {
	return c.cli(ctx, "radio", "wifi")
}

// WifiEnabled reports whether the Wi-Fi radio is switched on.
func (c *Client) WifiEnabled(ctx context.Context) (bool, error) {
	status, err := c.GetWifiStatus(ctx)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(status) == "enabled", nil
}

// GetWifiList returns the access points currently visible to NetworkManager.
func (c *Client) GetWifiList(ctx context.Context, rescan bool) ([]WifiAccessPoint, error) {
	rescanArg := "no"
	if rescan {
		rescanArg = "yes"
	}
	args := []string{"-m", "multiline", "-f", wifiListFields, "device", "wifi", "list", "--rescan", rescanArg}
	rawData, err := c.clib(ctx, args...)
	if err != nil {
		return nil, err
	}
	wifiList := make([]WifiAccessPoint, 0, len(rawData))
	for _, item := range rawData {
		wifiList = append(wifiList, WifiAccessPoint(item))
	}
	return wifiList, nil
}

// SSID returns the network name, or "" for hidden networks.
func (ap WifiAccessPoint) SSID() string {
	ssid := ap[NmcliFieldWifiSSID]
	if ssid == "--" {
		return ""
	}
	return ssid
}

// Signal returns the 0-100 signal quality nmcli reports.
func (ap WifiAccessPoint) Signal() int {
	signal, _ := strconv.Atoi(strings.TrimSpace(ap[NmcliFieldWifiSignal]))
	return signal
}

// Security returns the SECURITY column, with "--" normalised to "".
func (ap WifiAccessPoint) Security() string {
	sec := strings.TrimSpace(ap[NmcliFieldWifiSecurity])
	if sec == "--" {
		return ""
	}
	return sec
}

// InUse reports whether this access point is the one currently joined.
func (ap WifiAccessPoint) InUse() bool {
	return strings.TrimSpace(ap[NmcliFieldWifiInUse]) == "*"
}

// WifiConnect asks NetworkManager to join ssid, creating a profile on the fly.
func (c *Client) WifiConnect(ctx context.Context, ssid, password, ifname string, hidden bool) (string, error) {
	if strings.TrimSpace(ssid) == "" {
		return "", ErrEmptySSID
	}
	args := []string{"device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	if ifname != "" {
		args = append(args, "ifname", ifname)
	}
	if hidden {
		args = append(args, "hidden", "yes")
	}
	return c.cli(ctx, args...)
}

// AddWifiConnection creates a new Wi-Fi profile with the given security block.
func (c *Client) AddWifiConnection(ctx context.Context, p WifiProfile) (string, error) {
	if strings.TrimSpace(p.SSID) == "" {
		return "", ErrEmptySSID
	}
	name := p.Name
	if strings.TrimSpace(name) == "" {
		name = p.SSID
	}
	ifname := p.Interface
	if ifname == "" {
		ifname = "*"
	}
	args := []string{
		"connection", "add", "type", connectionTypeWifiShort,
		"con-name", name,
		"ifname", ifname,
		"ssid", p.SSID,
	}
	switch p.KeyMgmt {
	case KeyMgmtWEP:
		if p.Password == "" {
			return "", fmt.Errorf("password empty for WEP")
		}
		args = append(args, wifiSecKeyMgmt, keyMgmtNone, wifiSecWEPKey0, p.Password, wifiSecAuthAlg, authAlgOpen)
	case KeyMgmtWPAPSK:
		if p.Password == "" {
			return "", fmt.Errorf("password empty for WPA-PSK")
		}
		args = append(args, wifiSecKeyMgmt, keyMgmtWPAPSK, wifiSecPSK, p.Password)
	}
	if p.Hidden {
		args = append(args, wifiHidden, "yes")
	}
	c.log.Infof("Adding Wi-Fi profile: %s for SSID: %s, ifname: %s", name, p.SSID, ifname)
	return c.cli(ctx, args...)
}
