package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"prefixjoin/internal/autojoin"
	"prefixjoin/internal/candidate"
)

func newConnectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <ssid>",
		Short: "Join one network by SSID with the configured password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConnect(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func (a *app) runConnect(ctx context.Context, out io.Writer, ssid string) error {
	conn, err := a.connector()
	if err != nil {
		return err
	}
	aps, err := a.nm.GetWifiList(ctx, a.cfg.Rescan)
	if err != nil {
		return fmt.Errorf("scanning Wi-Fi networks: %w", err)
	}

	var target *candidate.Candidate
	for _, r := range candidate.DedupByLevel(autojoin.ScanResults(aps)) {
		if r.SSID == ssid {
			target = &candidate.Candidate{ScanResult: r, Cipher: candidate.ParseCipher(r.Capabilities)}
			break
		}
	}
	if target == nil {
		return fmt.Errorf("network %q is not in range", ssid)
	}
	if target.Cipher == candidate.CipherEnterprise {
		return fmt.Errorf("network %q uses %s and cannot be joined with a shared password", ssid, target.Cipher)
	}

	r := conn.ConnectSync(ctx, *target, a.cfg.Password)
	if !r.OK {
		fmt.Fprintln(out, autojoin.MsgConnectFailed)
		return fmt.Errorf("connecting to %s: %w", ssid, r.Err)
	}
	fmt.Fprintf(out, "Connected to %s\n", ssid)
	return nil
}
