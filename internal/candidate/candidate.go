// Package candidate picks the access points eligible for auto-join.
package candidate

import (
	"sort"
	"strings"
)

// Cipher is the security scheme advertised by an access point.
type Cipher int

const (
	CipherNone Cipher = iota
	CipherWEP
	CipherWPA
	// CipherEnterprise is 802.1X/EAP, which a shared password cannot join.
	CipherEnterprise
)

func (c Cipher) String() string {
	switch c {
	case CipherWEP:
		return "WEP"
	case CipherWPA:
		return "WPA/WPA2"
	case CipherEnterprise:
		return "802.1X"
	default:
		return "open"
	}
}

// ParseCipher infers the cipher from a capabilities string such as nmcli's
// SECURITY column ("WPA1 WPA2") or a bracketed list ("[WPA2-PSK-CCMP][ESS]").
func ParseCipher(capabilities string) Cipher {
	caps := strings.ToUpper(capabilities)
	switch {
	case strings.Contains(caps, "802.1X"), strings.Contains(caps, "EAP"):
		return CipherEnterprise
	case strings.Contains(caps, "WEP"):
		return CipherWEP
	case strings.Contains(caps, "PSK"), strings.Contains(caps, "WPA"), strings.Contains(caps, "SAE"):
		return CipherWPA
	default:
		return CipherNone
	}
}

// ScanResult is one row of a Wi-Fi scan.
type ScanResult struct {
	SSID         string `json:"ssid"`
	BSSID        string `json:"bssid,omitempty"`
	Signal       int    `json:"signal"`
	Capabilities string `json:"capabilities,omitempty"`
}

// Candidate is a scan result eligible for auto-join.
type Candidate struct {
	ScanResult
	Cipher Cipher `json:"cipher"`
}

func newCandidate(r ScanResult) Candidate {
	return Candidate{ScanResult: r, Cipher: ParseCipher(r.Capabilities)}
}

// DedupByLevel keeps one result per SSID, the one with the strongest signal,
// and returns them sorted ascending by signal. On equal signal the first seen
// entry wins; a stronger duplicate takes over the position of the entry it replaces.
func DedupByLevel(results []ScanResult) []ScanResult {
	out := make([]ScanResult, 0, len(results))
	index := make(map[string]int, len(results))
	for _, r := range results {
		if i, ok := index[r.SSID]; ok {
			if r.Signal > out[i].Signal {
				out[i] = r
			}
			continue
		}
		index[r.SSID] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Signal < out[j].Signal })
	return out
}

// Select deduplicates results and keeps those whose SSID starts with prefix.
// Enterprise networks are skipped.
func Select(results []ScanResult, prefix string) []Candidate {
	var candidates []Candidate
	for _, r := range DedupByLevel(results) {
		if !strings.HasPrefix(r.SSID, prefix) {
			continue
		}
		c := newCandidate(r)
		if c.Cipher == CipherEnterprise {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// Kind says what to do with a set of candidates.
type Kind int

const (
	// DecisionNone means nothing matched.
	DecisionNone Kind = iota
	// DecisionConnect means exactly one network matched and is joined directly.
	DecisionConnect
	// DecisionPick means the user has to choose.
	DecisionPick
)

// Decision is the outcome of Decide.
type Decision struct {
	Kind       Kind
	Target     Candidate
	Candidates []Candidate
}

// Decide chooses between connecting directly and offering a pick-list.
func Decide(candidates []Candidate) Decision {
	switch len(candidates) {
	case 0:
		return Decision{Kind: DecisionNone}
	case 1:
		return Decision{Kind: DecisionConnect, Target: candidates[0], Candidates: candidates}
	default:
		return Decision{Kind: DecisionPick, Candidates: candidates}
	}
}
