package autojoin

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prefixjoin/gonetworkmanager"
	"prefixjoin/internal/candidate"
	"prefixjoin/internal/connector"
	"prefixjoin/internal/radio"
)

type fakeNetwork struct {
	perms      map[string]string
	enabled    bool
	enableCall int
	aps        []gonetworkmanager.WifiAccessPoint
	scanErr    error
	rescanArg  bool
}

func (f *fakeNetwork) GetPermissions(context.Context) (map[string]string, error) {
	return f.perms, nil
}

func (f *fakeNetwork) WifiEnabled(context.Context) (bool, error) { return f.enabled, nil }

func (f *fakeNetwork) WifiEnable(context.Context) (string, error) {
	f.enableCall++
	return "", nil
}

func (f *fakeNetwork) GetWifiList(_ context.Context, rescan bool) ([]gonetworkmanager.WifiAccessPoint, error) {
	f.rescanArg = rescan
	return f.aps, f.scanErr
}

type fakeConnector struct {
	result   connector.Result
	password string
	target   candidate.Candidate
}

func (f *fakeConnector) Connect(_ context.Context, target candidate.Candidate, password string, done func(connector.Result)) {
	f.target = target
	f.password = password
	r := f.result
	r.SSID = target.SSID
	done(r)
}

func ap(ssid string, signal string, security string) gonetworkmanager.WifiAccessPoint {
	return gonetworkmanager.WifiAccessPoint{
		gonetworkmanager.NmcliFieldWifiSSID:     ssid,
		gonetworkmanager.NmcliFieldWifiSignal:   signal,
		gonetworkmanager.NmcliFieldWifiSecurity: security,
	}
}

func newController(net *fakeNetwork, conn *fakeConnector) *Controller {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(net, conn, Options{Prefix: "Tops_", Password: "12345678", AutoEnableRadio: true, Rescan: true}, l)
}

func TestAutoConnectSingleCandidate(t *testing.T) {
	net := &fakeNetwork{enabled: true, aps: []gonetworkmanager.WifiAccessPoint{
		ap("Tops_1", "40", "WPA2"),
		ap("Tops_1", "65", "WPA2"),
		ap("Office", "90", "WPA2"),
	}}
	conn := &fakeConnector{result: connector.Result{OK: true}}
	c := newController(net, conn)

	step := c.AutoConnect(context.Background())
	require.Equal(t, StepConnect, step.Kind)
	assert.Equal(t, "Tops_1", step.Target.SSID)
	assert.Equal(t, 65, step.Target.Signal)
	assert.True(t, net.rescanArg)

	st := c.Snapshot()
	assert.True(t, st.InProgress)
	assert.False(t, st.MoreThanOne)

	var got connector.Result
	c.Connect(context.Background(), step.Target, func(r connector.Result) { got = r })
	assert.True(t, got.OK)
	assert.Equal(t, "12345678", conn.password)

	st = c.Snapshot()
	assert.False(t, st.InProgress)
	assert.Equal(t, MsgConnectOK, st.Message)
}

func TestAutoConnectMultipleCandidates(t *testing.T) {
	net := &fakeNetwork{enabled: true, aps: []gonetworkmanager.WifiAccessPoint{
		ap("Tops_1", "70", "WPA2"),
		ap("Tops_2", "30", "WPA2"),
		ap("--", "99", "--"),
	}}
	c := newController(net, &fakeConnector{})

	step := c.AutoConnect(context.Background())
	require.Equal(t, StepPick, step.Kind)

	st := c.Snapshot()
	assert.True(t, st.InProgress)
	assert.True(t, st.MoreThanOne)
	require.Len(t, st.Candidates, 2)
	assert.Equal(t, "Tops_2", st.Candidates[0].SSID)
	assert.Equal(t, "Tops_1", st.Candidates[1].SSID)
	assert.Contains(t, st.Message, "pick one")
}

func TestAutoConnectNoCandidates(t *testing.T) {
	net := &fakeNetwork{enabled: true, aps: []gonetworkmanager.WifiAccessPoint{ap("Office", "70", "WPA2")}}
	c := newController(net, &fakeConnector{})

	step := c.AutoConnect(context.Background())
	require.Equal(t, StepPick, step.Kind)
	st := c.Snapshot()
	assert.True(t, st.MoreThanOne)
	assert.Empty(t, st.Candidates)
	assert.Contains(t, st.Message, "No networks starting with Tops_")
}

func TestAutoConnectPermissionDenied(t *testing.T) {
	net := &fakeNetwork{enabled: true, perms: map[string]string{gonetworkmanager.PermissionWifiScan: "no"}}
	c := newController(net, &fakeConnector{})

	step := c.AutoConnect(context.Background())
	assert.Equal(t, StepNeedPermission, step.Kind)
	assert.ErrorIs(t, step.Err, ErrPermissionDenied)
	st := c.Snapshot()
	assert.True(t, st.InProgress)
	assert.Equal(t, MsgNoPermission, st.Message)
}

func TestAutoConnectAuthPermissionIsAccepted(t *testing.T) {
	net := &fakeNetwork{enabled: true, perms: map[string]string{gonetworkmanager.PermissionWifiScan: "auth"}}
	step := newController(net, &fakeConnector{}).AutoConnect(context.Background())
	assert.Equal(t, StepPick, step.Kind)
}

func TestAutoConnectRadioDisabledResumesOnEnable(t *testing.T) {
	net := &fakeNetwork{enabled: false}
	c := newController(net, &fakeConnector{})

	step := c.AutoConnect(context.Background())
	assert.Equal(t, StepRadioDisabled, step.Kind)
	assert.Equal(t, 1, net.enableCall)
	assert.Equal(t, MsgRadioOff, c.Snapshot().Message)

	assert.False(t, c.OnRadio(radio.StateEnabling))
	assert.True(t, c.OnRadio(radio.StateEnabled))
}

func TestAutoConnectRetryClearsPreviousPickList(t *testing.T) {
	net := &fakeNetwork{enabled: true, aps: []gonetworkmanager.WifiAccessPoint{
		ap("Tops_1", "70", "WPA2"),
		ap("Tops_2", "30", "WPA2"),
	}}
	c := newController(net, &fakeConnector{})

	require.Equal(t, StepPick, c.AutoConnect(context.Background()).Kind)
	require.True(t, c.Snapshot().MoreThanOne)

	net.enabled = false
	require.Equal(t, StepRadioDisabled, c.AutoConnect(context.Background()).Kind)

	st := c.Snapshot()
	assert.True(t, st.InProgress)
	assert.False(t, st.MoreThanOne)
	assert.Empty(t, st.Candidates)
	assert.Equal(t, MsgRadioOff, st.Message)

	net.enabled = true
	net.perms = map[string]string{gonetworkmanager.PermissionNetworkControl: "no"}
	require.Equal(t, StepNeedPermission, c.AutoConnect(context.Background()).Kind)
	assert.False(t, c.Snapshot().MoreThanOne)
	assert.Empty(t, c.Snapshot().Candidates)
}

func TestOnRadioIgnoredWhenIdle(t *testing.T) {
	c := newController(&fakeNetwork{}, &fakeConnector{})
	assert.False(t, c.OnRadio(radio.StateEnabled))
}

func TestAutoConnectScanFailure(t *testing.T) {
	net := &fakeNetwork{enabled: true, scanErr: errors.New("no wifi device")}
	c := newController(net, &fakeConnector{})

	step := c.AutoConnect(context.Background())
	assert.Equal(t, StepFailed, step.Kind)
	assert.ErrorContains(t, step.Err, "no wifi device")
	assert.False(t, c.Snapshot().InProgress)
}

func TestConnectFailureMessage(t *testing.T) {
	conn := &fakeConnector{result: connector.Result{OK: false, Err: errors.New("unavailable")}}
	c := newController(&fakeNetwork{enabled: true}, conn)

	c.Connect(context.Background(), candidate.Candidate{ScanResult: candidate.ScanResult{SSID: "Tops_9"}}, nil)

	st := c.Snapshot()
	assert.False(t, st.InProgress)
	assert.Equal(t, MsgConnectFailed, st.Message)
	assert.Equal(t, "Tops_9", conn.target.SSID)
}

func TestScanResultsDropsHidden(t *testing.T) {
	results := ScanResults([]gonetworkmanager.WifiAccessPoint{
		ap("Tops_1", "50", "WPA2"),
		ap("--", "80", ""),
		ap("", "10", ""),
	})
	require.Len(t, results, 1)
	assert.Equal(t, 50, results[0].Signal)
	assert.Equal(t, "WPA2", results[0].Capabilities)
}
