package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"prefixjoin/internal/autojoin"
	"prefixjoin/internal/connector"
	"prefixjoin/internal/radio"
)

var (
	errRadioOff          = errors.New("Wi-Fi radio is off")
	errNoCandidates      = errors.New("no candidate networks in range")
	errSeveralCandidates = errors.New("several candidate networks in range, pick one with 'prefixjoin connect <ssid>'")
)

func newAutoCmd(a *app) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Run one auto-connect attempt without the interactive screen",
		Long: `auto scans, filters by prefix and joins the only matching network.
When several networks match they are listed and the command exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAuto(cmd.Context(), cmd.OutOrStdout(), wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for the Wi-Fi radio to come on")
	return cmd
}

func (a *app) runAuto(ctx context.Context, out io.Writer, wait time.Duration) error {
	ctrl, err := a.controller()
	if err != nil {
		return err
	}

	step := ctrl.AutoConnect(ctx)
	if step.Kind == autojoin.StepRadioDisabled {
		fmt.Fprintln(out, ctrl.Snapshot().Message)
		if !a.cfg.AutoEnableRadio {
			return errRadioOff
		}
		if step, err = a.awaitRadio(ctx, ctrl, wait); err != nil {
			return err
		}
	}

	switch step.Kind {
	case autojoin.StepNeedPermission, autojoin.StepFailed:
		fmt.Fprintln(out, ctrl.Snapshot().Message)
		return step.Err
	case autojoin.StepRadioDisabled:
		return errRadioOff
	case autojoin.StepPick:
		state := ctrl.Snapshot()
		fmt.Fprintln(out, state.Message)
		if len(state.Candidates) == 0 {
			return errNoCandidates
		}
		fmt.Fprintln(out, candidateTable(state.Candidates))
		return errSeveralCandidates
	}

	results := make(chan connector.Result, 1)
	ctrl.Connect(ctx, step.Target, func(r connector.Result) { results <- r })
	var r connector.Result
	select {
	case r = <-results:
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Fprintln(out, ctrl.Snapshot().Message)
	if !r.OK {
		if r.Err != nil {
			return fmt.Errorf("connecting to %s: %w", r.SSID, r.Err)
		}
		return fmt.Errorf("connecting to %s failed", r.SSID)
	}
	return nil
}

// awaitRadio watches the radio until it is enabled, then retries the attempt.
func (a *app) awaitRadio(ctx context.Context, ctrl *autojoin.Controller, wait time.Duration) (autojoin.Step, error) {
	watchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	watcher := radio.NewWatcher(a.nm, a.nm, a.log)
	go func() {
		if err := watcher.Run(watchCtx); err != nil {
			a.log.Warnf("Radio watcher stopped: %v", err)
		}
	}()

	a.log.Infof("Waiting up to %s for the Wi-Fi radio", wait)
	for ev := range watcher.Events() {
		if ctrl.OnRadio(ev.State) {
			return ctrl.AutoConnect(ctx), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return autojoin.Step{}, err
	}
	return autojoin.Step{}, errRadioOff
}
