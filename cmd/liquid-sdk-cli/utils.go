package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/breez/breez-liquid-sdk-go/internal/config"
	"github.com/breez/breez-liquid-sdk-go/pkg/liquidsdk"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/skip2/go-qrcode"
	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli/v2"
)

var yellowBold = color.New(color.FgHiYellow, color.Bold)

func requireNArgs(n int, action cli.ActionFunc) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		if ctx.NArg() != n {
			return cli.ShowSubcommandHelp(ctx)
		}
		return action(ctx)
	}
}

func printJson(value any) {
	encoder := json.NewEncoder(os.Stdout)
	// invoices and uris have to stay readable
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(value); err != nil {
		fmt.Println("Could not encode response: " + err.Error())
	}
}

func prompt(message string) bool {
	confirmed := false
	if err := survey.AskOne(&survey.Confirm{Message: message}, &confirmed); err != nil {
		return false
	}
	return confirmed
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " " + suffix
	return s
}

func printQr(content string) error {
	code, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return fmt.Errorf("could not create qr code: %w", err)
	}
	fmt.Print(code.ToSmallString(false))
	return nil
}

// mnemonic reads the phrase file, creating a new wallet on first use
func mnemonic(cfg *config.Config) (string, error) {
	phrase, err := cfg.ReadPhrase()
	if err == nil {
		return phrase, nil
	}
	if !errors.Is(err, config.ErrNoPhrase) {
		return "", err
	}

	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	phrase, err = bip39.NewMnemonic(entropy)
	if err != nil {
		return "", err
	}
	if err := cfg.WritePhrase(phrase); err != nil {
		return "", fmt.Errorf("could not store mnemonic: %w", err)
	}
	yellowBold.Printf("Created a new wallet, its mnemonic was written to %s\n", cfg.PhraseFile)
	return phrase, nil
}

func connect(ctx *cli.Context) (*liquidsdk.LiquidSdk, error) {
	cfg := getConfig(ctx)
	phrase, err := mnemonic(cfg)
	if err != nil {
		return nil, err
	}
	sdkConfig, err := cfg.SdkConfig()
	if err != nil {
		return nil, err
	}

	s := newSpinner("Connecting...")
	s.Start()
	sdk, err := liquidsdk.ConnectWithConfig(ctx.Context, sdkConfig, phrase)
	s.Stop()
	if err != nil {
		return nil, fmt.Errorf("could not connect: %w", err)
	}
	return sdk, nil
}

// withSdk connects for the duration of a single command
func withSdk(action func(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		sdk, err := connect(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := sdk.Disconnect(); err != nil {
				fmt.Println("Could not disconnect: " + err.Error())
			}
		}()
		return action(ctx, sdk)
	}
}

func formatTime(timestamp uint32) string {
	if timestamp == 0 {
		return "-"
	}
	return time.Unix(int64(timestamp), 0).Format(time.DateTime)
}

func optional(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
