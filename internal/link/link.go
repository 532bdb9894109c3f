// Package link reads the live nl80211 association of the local Wi-Fi station.
package link

import (
	"errors"
	"fmt"
	"os"

	"github.com/mdlayher/wifi"
)

var ErrNoWifiDevice = errors.New("no Wi-Fi station interface found")

// Info describes one station interface and, when associated, its BSS.
type Info struct {
	Interface  string
	MAC        string
	Associated bool
	SSID       string
	BSSID      string
	Frequency  int
	SignalDBm  int
}

func (i Info) String() string {
	if !i.Associated {
		return fmt.Sprintf("%s: not associated", i.Interface)
	}
	return fmt.Sprintf("%s: %s (%s, %d MHz, %d dBm)", i.Interface, i.SSID, i.BSSID, i.Frequency, i.SignalDBm)
}

// Source is the nl80211 surface used by Inspect.
type Source interface {
	Interfaces() ([]*wifi.Interface, error)
	BSS(ifi *wifi.Interface) (*wifi.BSS, error)
	StationInfo(ifi *wifi.Interface) ([]*wifi.StationInfo, error)
	Close() error
}

// Open connects to nl80211.
func Open() (Source, error) {
	c, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("could not init a wifi interface client: %w", err)
	}
	return c, nil
}

// Inspect reports every station interface, optionally limited to ifname.
func Inspect(src Source, ifname string) ([]Info, error) {
	ifis, err := src.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("could not list wifi interfaces: %w", err)
	}
	var infos []Info
	for _, ifi := range ifis {
		if ifi.Type != wifi.InterfaceTypeStation || ifi.Name == "" {
			continue
		}
		if ifname != "" && ifi.Name != ifname {
			continue
		}
		info := Info{Interface: ifi.Name}
		if ifi.HardwareAddr != nil {
			info.MAC = ifi.HardwareAddr.String()
		}
		bss, err := src.BSS(ifi)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading BSS of %s: %w", ifi.Name, err)
		default:
			info.Associated = true
			info.SSID = bss.SSID
			info.BSSID = bss.BSSID.String()
			info.Frequency = bss.Frequency
			if stations, err := src.StationInfo(ifi); err == nil && len(stations) > 0 {
				info.SignalDBm = stations[0].Signal
			}
		}
		infos = append(infos, info)
	}
	if len(infos) == 0 {
		return nil, ErrNoWifiDevice
	}
	return infos, nil
}

// DefaultInterface returns the first station interface name, or "" when
// nl80211 is unavailable.
func DefaultInterface() string {
	src, err := Open()
	if err != nil {
		return ""
	}
	defer src.Close()
	infos, err := Inspect(src, "")
	if err != nil {
		return ""
	}
	return infos[0].Interface
}
