package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"prefixjoin/internal/autojoin"
	"prefixjoin/internal/candidate"
)

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List the networks that match the prefix, weakest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runScan(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) runScan(ctx context.Context, out io.Writer) error {
	enabled, err := a.nm.WifiEnabled(ctx)
	if err != nil {
		return fmt.Errorf("reading Wi-Fi radio state: %w", err)
	}
	if !enabled {
		return errRadioOff
	}

	aps, err := a.nm.GetWifiList(ctx, a.cfg.Rescan)
	if err != nil {
		return fmt.Errorf("scanning Wi-Fi networks: %w", err)
	}
	cands := candidate.Select(autojoin.ScanResults(aps), a.cfg.SSIDPrefix)
	if len(cands) == 0 {
		fmt.Fprintf(out, "No networks starting with %s found\n", a.cfg.SSIDPrefix)
		return nil
	}
	fmt.Fprintln(out, candidateTable(cands))
	return nil
}

func candidateTable(cands []candidate.Candidate) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SSID", "SIGNAL", "SECURITY", "BSSID")
	for _, c := range cands {
		t.Row(c.SSID, strconv.Itoa(c.Signal), c.Cipher.String(), c.BSSID)
	}
	return t.String()
}
