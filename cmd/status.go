package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"prefixjoin/gonetworkmanager"
	"prefixjoin/internal/link"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the Wi-Fi radio state, active Wi-Fi profiles and link details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) runStatus(ctx context.Context, out io.Writer) error {
	status, err := a.nm.GetWifiStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading Wi-Fi radio state: %w", err)
	}
	fmt.Fprintf(out, "Wi-Fi radio: %s\n", strings.TrimSpace(status))

	profiles, err := a.nm.GetConnectionProfilesList(ctx, true)
	if err != nil {
		return fmt.Errorf("listing active connections: %w", err)
	}
	for _, p := range profiles {
		if !gonetworkmanager.IsWifiProfile(p) {
			continue
		}
		ssid, err := a.nm.GetProfileSSID(ctx, gonetworkmanager.ProfileIdentifier(p))
		if err != nil {
			a.log.Debugf("Could not read SSID of profile %s: %v", p[gonetworkmanager.NmcliFieldConnectionName], err)
		}
		fmt.Fprintf(out, "Active: %s (ssid %s, device %s)\n",
			p[gonetworkmanager.NmcliFieldConnectionName], ssid, p[gonetworkmanager.NmcliFieldConnectionDevice])
	}

	src, err := a.openLink()
	if err != nil {
		fmt.Fprintf(out, "Link: unavailable (%v)\n", err)
		return nil
	}
	defer src.Close()
	infos, err := link.Inspect(src, a.cfg.Interface)
	if err != nil {
		fmt.Fprintf(out, "Link: unavailable (%v)\n", err)
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(out, "Link: %s\n", info)
	}
	return nil
}
