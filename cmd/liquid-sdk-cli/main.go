package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/breez/breez-liquid-sdk-go/internal/build"
	"github.com/breez/breez-liquid-sdk-go/internal/config"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/utils"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	// global options are handled by the config package, everything else is left for the commands
	cfg, rest, err := config.LoadConfig(utils.DefaultDataDir, os.Args[1:])
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	logger.Init(cfg.Log)

	app := &cli.App{
		Name:    "liquid-sdk-cli",
		Usage:   "Send and receive lightning payments from a Liquid wallet",
		Version: build.GetVersion(),
		Description: "Global options (--datadir, --network, --boltz, --electrum, --mempool, --loglevel, ...) go before the command.\n" +
			"They can also be set in liquid-sdk.toml inside the data directory or with " + config.EnvPrefix + "_* environment variables.",
		Metadata: map[string]any{configKey: cfg},
		Commands: []*cli.Command{
			getInfoCommand,
			listPaymentsCommand,
			syncCommand,

			sendPaymentCommand,
			receivePaymentCommand,
			lnUrlPayCommand,

			parseCommand,
			parseInvoiceCommand,

			backupCommand,
			restoreCommand,
			emptyCacheCommand,

			listenCommand,
			showConfigCommand,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, append([]string{os.Args[0]}, rest...)); err != nil {
		fmt.Println(err.Error())
		stop()
		os.Exit(1)
	}
}

func getConfig(ctx *cli.Context) *config.Config {
	return ctx.App.Metadata[configKey].(*config.Config)
}
