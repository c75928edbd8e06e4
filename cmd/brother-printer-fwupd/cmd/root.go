package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/discovery"
	"github.com/sedrubal/brother-printer-fwupd/logger"
	"github.com/sedrubal/brother-printer-fwupd/models"
)

var (
	flagConfig    string
	flagDebug     bool
	flagIP        string
	flagCommunity string
	flagSNMPPort  int
	flagFWDir     string

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "brother-printer-fwupd",
	Short:         "Update the firmware of Brother network printers",
	Long: `brother-printer-fwupd discovers Brother printers on the local network,
queries their identity and installed firmware versions over SNMP, fetches
newer firmware from the Brother update service and uploads it to the
printer over its PDL Datastream (jetdirect) port.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagCommunity != "" {
			cfg.SNMP.Community = flagCommunity
		}
		if flagSNMPPort > 0 {
			cfg.SNMP.Port = flagSNMPPort
		}
		if flagFWDir != "" {
			cfg.FirmwareDir = flagFWDir
		}

		level := logger.ParseLevel(cfg.Logging.Level)
		if flagDebug {
			level = logger.DEBUG
		}
		log = logger.New(level)
		if cfg.Logging.File != "" {
			if err := log.OpenLogFile(cfg.Logging.File); err != nil {
				return err
			}
		}
		logger.Global = log
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "print debug messages")
	rootCmd.PersistentFlags().StringVar(&flagIP, "ip", "", "IP address or hostname of the printer (default: autodiscover via mDNS)")
	rootCmd.PersistentFlags().StringVarP(&flagCommunity, "community", "c", "", "SNMP community string for the printer")
	rootCmd.PersistentFlags().IntVar(&flagSNMPPort, "snmp-port", 0, "UDP port for SNMP at the printer")
	rootCmd.PersistentFlags().StringVarP(&flagFWDir, "fw-dir", "o", "", "directory where firmware images are stored")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(historyCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// targetDevices resolves the devices a command operates on: the --ip
// flag when given, otherwise an mDNS discovery round. Invalid target
// syntax is fatal before any pipeline starts.
func targetDevices(ctx context.Context) ([]models.Device, error) {
	if flagIP != "" {
		dev, err := models.NewDevice(flagIP)
		if err != nil {
			return nil, err
		}
		if cfg.Upload.Port > 0 {
			dev.UploadPort = cfg.Upload.Port
		}
		return []models.Device{dev}, nil
	}

	if !cfg.DiscoveryEnabled {
		return nil, fmt.Errorf("no --ip given and discovery is disabled in the configuration")
	}

	log.Info("Discovering printers via mDNS", "window", cfg.Discovery.Window())
	browser := discovery.NewBrowser(cfg.Discovery, log)
	devices, err := browser.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no printer given or found; run with --ip=<address> to skip autodiscovery")
	}
	return devices, nil
}
