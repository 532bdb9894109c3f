package gonetworkmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner answers nmcli invocations keyed by their joined arguments.
type scriptedRunner struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (s *scriptedRunner) run(_ context.Context, args ...string) (string, error) {
	joined := strings.Join(args, " ")
	s.calls = append(s.calls, joined)
	if err, ok := s.errs[joined]; ok {
		return "", err
	}
	return s.responses[joined], nil
}

func newTestClient(s *scriptedRunner) *Client {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewWithRunner(s.run, l)
}

const wifiListOutput = `IN-USE:                                 
BSSID:                                  AA:BB:CC:DD:EE:01
SSID:                                   Tops_Lobby
SIGNAL:                                 72
SECURITY:                               WPA2
IN-USE:                                 *
BSSID:                                  AA:BB:CC:DD:EE:02
SSID:                                   Home Net 
SIGNAL:                                 91
SECURITY:                               WPA1 WPA2
IN-USE:                                 
BSSID:                                  AA:BB:CC:DD:EE:03
SSID:                                   --
SIGNAL:                                 20
SECURITY:                               --
`

func TestParseNmcliMultilineOutput(t *testing.T) {
	records, err := parseNmcliMultilineOutput(wifiListOutput)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", records[0][NmcliFieldWifiBSSID])
	assert.Equal(t, "Home Net ", records[1][NmcliFieldWifiSSID], "trailing SSID whitespace is preserved")
	assert.Equal(t, "*", records[1][NmcliFieldWifiInUse])
}

func TestParseNmcliMultilineOutputEmptyAndMalformed(t *testing.T) {
	records, err := parseNmcliMultilineOutput("   \n")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = parseNmcliMultilineOutput("SSID: a\nnot a pair")
	assert.Error(t, err)
}

func TestGetWifiList(t *testing.T) {
	s := &scriptedRunner{responses: map[string]string{
		"-m multiline -f IN-USE,BSSID,SSID,SIGNAL,SECURITY device wifi list --rescan yes": wifiListOutput,
	}}
	c := newTestClient(s)

	aps, err := c.GetWifiList(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, aps, 3)

	assert.Equal(t, "Tops_Lobby", aps[0].SSID())
	assert.Equal(t, 72, aps[0].Signal())
	assert.Equal(t, "WPA2", aps[0].Security())
	assert.False(t, aps[0].InUse())
	assert.True(t, aps[1].InUse())
	assert.Equal(t, "", aps[2].SSID())
	assert.Equal(t, "", aps[2].Security())
}

func TestGetWifiListError(t *testing.T) {
	s := &scriptedRunner{errs: map[string]error{
		"-m multiline -f IN-USE,BSSID,SSID,SIGNAL,SECURITY device wifi list --rescan no": errors.New("boom"),
	}}
	_, err := newTestClient(s).GetWifiList(context.Background(), false)
	assert.ErrorContains(t, err, "boom")
}

func TestWifiEnabled(t *testing.T) {
	s := &scriptedRunner{responses: map[string]string{"radio wifi": "enabled"}}
	enabled, err := newTestClient(s).WifiEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)

	s.responses["radio wifi"] = "disabled"
	enabled, err = newTestClient(s).WifiEnabled(context.Background())
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestGetPermissions(t *testing.T) {
	s := &scriptedRunner{responses: map[string]string{
		"-t -f PERMISSION,VALUE general permissions": strings.Join([]string{
			PermissionWifiScan + ":yes",
			PermissionNetworkControl + ":auth",
			PermissionEnableWifi + ":no",
		}, "\n"),
	}}
	perms, err := newTestClient(s).GetPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "yes", perms[PermissionWifiScan])
	assert.Equal(t, "auth", perms[PermissionNetworkControl])
	assert.Equal(t, "no", perms[PermissionEnableWifi])
}

func TestSplitTerseHandlesEscapedColons(t *testing.T) {
	k, v, ok := splitTerse(`AA\:BB\:CC:value`)
	require.True(t, ok)
	assert.Equal(t, "AA:BB:CC", k)
	assert.Equal(t, "value", v)
}

func TestWifiConnectArgs(t *testing.T) {
	s := &scriptedRunner{}
	c := newTestClient(s)

	_, err := c.WifiConnect(context.Background(), "Tops_1", "12345678", "wlan0", false)
	require.NoError(t, err)
	assert.Equal(t, "device wifi connect Tops_1 password 12345678 ifname wlan0", s.calls[0])

	_, err = c.WifiConnect(context.Background(), " ", "", "", false)
	assert.ErrorIs(t, err, ErrEmptySSID)
}

func TestAddWifiConnection(t *testing.T) {
	tests := []struct {
		name    string
		profile WifiProfile
		want    string
		wantErr bool
	}{
		{
			name:    "wpa",
			profile: WifiProfile{SSID: "Tops_1", Password: "12345678", KeyMgmt: KeyMgmtWPAPSK, Hidden: true},
			want:    "connection add type wifi con-name Tops_1 ifname * ssid Tops_1 wifi-sec.key-mgmt wpa-psk wifi-sec.psk 12345678 802-11-wireless.hidden yes",
		},
		{
			name:    "wep",
			profile: WifiProfile{Name: "p", Interface: "wlan0", SSID: "Tops_2", Password: "abcde", KeyMgmt: KeyMgmtWEP},
			want:    "connection add type wifi con-name p ifname wlan0 ssid Tops_2 wifi-sec.key-mgmt none wifi-sec.wep-key0 abcde wifi-sec.auth-alg open",
		},
		{
			name:    "open",
			profile: WifiProfile{SSID: "Tops_3"},
			want:    "connection add type wifi con-name Tops_3 ifname * ssid Tops_3",
		},
		{
			name:    "wpa without password",
			profile: WifiProfile{SSID: "Tops_4", KeyMgmt: KeyMgmtWPAPSK},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedRunner{}
			_, err := newTestClient(s).AddWifiConnection(context.Background(), tt.profile)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, s.calls)
				return
			}
			require.NoError(t, err)
			require.Len(t, s.calls, 1)
			assert.Equal(t, tt.want, s.calls[0])
		})
	}
}

func TestFindWifiProfileBySSID(t *testing.T) {
	s := &scriptedRunner{responses: map[string]string{
		"-m multiline -f NAME,UUID,TYPE,DEVICE connection show --order name": `NAME:   Wired
UUID:   u-eth
TYPE:   802-3-ethernet
DEVICE: eth0
NAME:   Office
UUID:   u-office
TYPE:   802-11-wireless
DEVICE: --
NAME:   Tops_1
UUID:   u-tops
TYPE:   802-11-wireless
DEVICE: --`,
		"-g 802-11-wireless.ssid connection show u-office": "OfficeNet",
		"-g 802-11-wireless.ssid connection show u-tops":   "Tops_1",
	}}
	c := newTestClient(s)

	p, err := c.FindWifiProfileBySSID(context.Background(), "Tops_1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "u-tops", ProfileIdentifier(p))

	p, err = c.FindWifiProfileBySSID(context.Background(), "Missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestConnectionOpsRejectEmptyIdentifier(t *testing.T) {
	c := newTestClient(&scriptedRunner{})
	_, err := c.ConnectionUp(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyIdentifier)
	_, err = c.ConnectionDelete(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyIdentifier)
	_, err = c.ConnectionDown(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyIdentifier)
}

func TestRedactArgs(t *testing.T) {
	args := []string{"device", "wifi", "connect", "x", "password", "secret"}
	out := redactArgs(args)
	assert.Equal(t, "******", out[5])
	assert.Equal(t, "secret", args[5], "input is not modified")
}

// fakeStarter stands in for a long-running nmcli process.
type fakeStarter struct {
	lines []string
	block bool
	err   error
	args  []string
}

func (f *fakeStarter) start(ctx context.Context, w io.Writer, args ...string) (func() error, error) {
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	written := make(chan struct{})
	go func() {
		for _, l := range f.lines {
			fmt.Fprintln(w, l)
		}
		close(written)
	}()
	return func() error {
		<-written
		if f.block {
			<-ctx.Done()
		}
		return nil
	}, nil
}

func newMonitorClient(f *fakeStarter) *Client {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewWithStarter((&scriptedRunner{}).run, f.start, l)
}

func TestActivityMonitorClosesWriterWhenProcessExits(t *testing.T) {
	f := &fakeStarter{lines: []string{"wlan0: disconnected", "wlan0: unavailable"}}
	c := newMonitorClient(f)

	pr, pw := io.Pipe()
	stop, err := c.ActivityMonitor(context.Background(), pw)
	require.NoError(t, err)
	assert.Equal(t, []string{"monitor"}, f.args)

	read := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(pr)
		read <- string(b)
	}()
	select {
	case out := <-read:
		assert.Equal(t, "wlan0: disconnected\nwlan0: unavailable\n", out)
	case <-time.After(2 * time.Second):
		t.Fatal("writer was not closed after the monitor exited")
	}

	assert.NoError(t, stop())
	assert.NoError(t, stop())
}

func TestActivityMonitorStopIsIdempotent(t *testing.T) {
	c := newMonitorClient(&fakeStarter{block: true})

	stop, err := c.ActivityMonitor(context.Background(), io.Discard)
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		assert.NoError(t, stop())
		assert.NoError(t, stop())
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stopping the monitor twice blocked")
	}
}

func TestActivityMonitorStartFailure(t *testing.T) {
	c := newMonitorClient(&fakeStarter{err: errors.New("exec: \"nmcli\": not found")})

	_, err := c.ActivityMonitor(context.Background(), io.Discard)
	assert.ErrorContains(t, err, "failed to start 'nmcli monitor'")
}
