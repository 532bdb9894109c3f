package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"prefixjoin/gonetworkmanager"
	"prefixjoin/internal/autojoin"
	"prefixjoin/internal/config"
	"prefixjoin/internal/connector"
	"prefixjoin/internal/link"
	"prefixjoin/internal/radio"
	"prefixjoin/internal/tui"
)

// app carries what every command shares once the root pre-run has loaded
// configuration.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *logrus.Logger
	logFile *os.File
	nm      *gonetworkmanager.Client

	// Overridden in tests.
	checkNmcli       func() error
	newClient        func(logrus.FieldLogger) *gonetworkmanager.Client
	defaultInterface func() string
	openLink         func() (link.Source, error)
}

func newApp() *app {
	return &app{
		v:                viper.New(),
		log:              logrus.New(),
		checkNmcli:       gonetworkmanager.CheckAvailable,
		newClient:        gonetworkmanager.New,
		defaultInterface: link.DefaultInterface,
		openLink:         link.Open,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "prefixjoin",
		Short: "Join the nearest Wi-Fi network whose name starts with a known prefix",
		Long: `prefixjoin scans for Wi-Fi networks through NetworkManager, keeps those
whose SSID starts with the configured prefix and joins the only match
with the shared password. When several networks match it lets you pick one.

Run without a subcommand to open the interactive screen.`,
		// SilenceUsage is set to true to prevent printing usage message on errors
		// handled by us (e.g. no candidates, failed connections)
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, cmd.Root() == cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.teardown()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/prefixjoin/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("prefix", "", "SSID prefix networks must start with")
	flags.String("password", "", "password used for every candidate network")
	flags.String("strategy", "", "connect strategy: request, profile or auto")
	flags.String("interface", "", "Wi-Fi interface to connect with (default: first station)")
	for key, name := range map[string]string{
		"log_level":   "log-level",
		"ssid_prefix": "prefix",
		"password":    "password",
		"strategy":    "strategy",
		"interface":   "interface",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(newAutoCmd(a))
	root.AddCommand(newScanCmd(a))
	root.AddCommand(newConnectCmd(a))
	root.AddCommand(newStatusCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, interactive bool) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a.cfg = cfg

	a.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	a.log.SetLevel(parseLevel(cfg.LogLevel))
	if interactive {
		// Keep the alt screen clean.
		f, err := tea.LogToFile(cfg.LogFile, "debug")
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Could not create log file: %v\n", err)
			a.log.SetOutput(io.Discard)
		} else {
			a.logFile = f
			a.log.SetOutput(f)
		}
	} else {
		a.log.SetOutput(cmd.ErrOrStderr())
	}

	if err := a.checkNmcli(); err != nil {
		return fmt.Errorf("%w: this application requires NetworkManager to function", err)
	}
	a.nm = a.newClient(a.log)
	a.log.Debugf("Configuration: prefix=%q strategy=%s interface=%q", cfg.SSIDPrefix, cfg.Strategy, cfg.Interface)
	return nil
}

func (a *app) teardown() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

func parseLevel(s string) logrus.Level {
	switch s {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (a *app) interfaceName() string {
	if a.cfg.Interface != "" {
		return a.cfg.Interface
	}
	return a.defaultInterface()
}

func (a *app) connector() (*connector.Connector, error) {
	strategy, err := connector.ParseStrategy(a.cfg.Strategy)
	if err != nil {
		return nil, err
	}
	return connector.New(a.nm, strategy, a.interfaceName(), a.log), nil
}

func (a *app) controller() (*autojoin.Controller, error) {
	conn, err := a.connector()
	if err != nil {
		return nil, err
	}
	return autojoin.New(a.nm, conn, autojoin.Options{
		Prefix:          a.cfg.SSIDPrefix,
		Password:        a.cfg.Password,
		AutoEnableRadio: a.cfg.AutoEnableRadio,
		Rescan:          a.cfg.Rescan,
	}, a.log), nil
}

func (a *app) linkText() string {
	src, err := a.openLink()
	if err != nil {
		return ""
	}
	defer src.Close()
	infos, err := link.Inspect(src, a.cfg.Interface)
	if err != nil {
		return ""
	}
	return infos[0].String()
}

func (a *app) runTUI(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctrl, err := a.controller()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watcher := radio.NewWatcher(a.nm, a.nm, a.log)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warnf("Radio watcher stopped: %v", err)
		}
	}()

	a.log.Infof("Starting prefixjoin %s", version)
	return tui.Run(ctx, tui.Deps{
		Controller:    ctrl,
		Watcher:       watcher,
		Link:          a.linkText,
		ManualCommand: a.cfg.ManualArgv(),
		Log:           a.log,
	})
}
