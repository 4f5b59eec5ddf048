package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/breez/breez-liquid-sdk-go/internal/lightning"
	"github.com/breez/breez-liquid-sdk-go/pkg/liquidsdk"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"
)

var jsonFlag = &cli.BoolFlag{
	Name:  "json",
	Usage: "Prints the output as JSON",
}

var yesFlag = &cli.BoolFlag{
	Name:    "yes",
	Aliases: []string{"y"},
	Usage:   "Accepts the fees without asking",
}

var getInfoCommand = &cli.Command{
	Name:     "get-info",
	Category: "Info",
	Usage:    "Returns the balance and pubkey of the wallet",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "scan", Usage: "Syncs with the chain before returning"},
	},
	Action: withSdk(getInfo),
}

func getInfo(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
	info, err := sdk.GetInfo(ctx.Context, models.GetInfoRequest{WithScan: ctx.Bool("scan")})
	if err != nil {
		return err
	}
	printJson(info)
	return nil
}

var listPaymentsCommand = &cli.Command{
	Name:     "list-payments",
	Category: "Info",
	Usage:    "Lists all sent and received payments",
	Flags: []cli.Flag{
		jsonFlag,
		&cli.StringFlag{
			Name:  "type",
			Usage: "Only shows payments of the given type (send, receive)",
		},
		&cli.StringFlag{
			Name:  "status",
			Usage: "Only shows payments in the given status (created, pending, complete, failed, timed_out)",
		},
	},
	Action: withSdk(listPayments),
}

// filterPayments keeps the payments matching paymentType and status, an empty filter matches everything
func filterPayments(payments []models.Payment, paymentType string, status string) ([]models.Payment, error) {
	var filters []func(models.Payment) bool
	if paymentType != "" {
		parsed, err := models.ParsePaymentType(paymentType)
		if err != nil {
			return nil, err
		}
		filters = append(filters, func(payment models.Payment) bool { return payment.PaymentType == parsed })
	}
	if status != "" {
		parsed, err := models.ParsePaymentState(status)
		if err != nil {
			return nil, err
		}
		filters = append(filters, func(payment models.Payment) bool { return payment.Status == parsed })
	}

	result := make([]models.Payment, 0, len(payments))
outer:
	for _, payment := range payments {
		for _, matches := range filters {
			if !matches(payment) {
				continue outer
			}
		}
		result = append(result, payment)
	}
	return result, nil
}

func listPayments(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
	payments, err := sdk.ListPayments()
	if err != nil {
		return err
	}
	payments, err = filterPayments(payments, ctx.String("type"), ctx.String("status"))
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		printJson(payments)
		return nil
	}

	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()
	tbl := table.New("Type", "Status", "Amount", "Fees", "Time", "Tx ID", "Swap ID")
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)

	for _, payment := range payments {
		tbl.AddRow(
			payment.PaymentType, payment.Status, payment.AmountSat, payment.FeesSat,
			formatTime(payment.Timestamp), optional(payment.TxId), optional(payment.SwapId),
		)
	}

	if _, err := yellowBold.Println("Payments"); err != nil {
		return err
	}
	tbl.Print()
	return nil
}

var syncCommand = &cli.Command{
	Name:     "sync",
	Category: "Info",
	Usage:    "Scans the chain for new wallet transactions",
	Action: withSdk(func(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
		s := newSpinner("Syncing...")
		s.Start()
		err := sdk.Sync(ctx.Context)
		s.Stop()
		if err != nil {
			return err
		}
		fmt.Println("Synced")
		return nil
	}),
}

var sendPaymentCommand = &cli.Command{
	Name:      "send-payment",
	Category:  "Payments",
	Usage:     "Pays a lightning invoice from the wallet",
	ArgsUsage: "invoice",
	Flags:     []cli.Flag{yesFlag},
	Action:    requireNArgs(1, withSdk(sendPayment)),
}

func sendPayment(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
	prepared, err := sdk.PrepareSendPayment(models.PrepareSendRequest{Invoice: ctx.Args().First()})
	if err != nil {
		return err
	}
	if !ctx.Bool("yes") && !prompt(fmt.Sprintf("Paying the invoice costs %d sats in fees. Do you want to continue?", prepared.FeesSat)) {
		return nil
	}

	s := newSpinner("Waiting for the payment to complete...")
	s.Start()
	response, err := sdk.SendPayment(ctx.Context, *prepared)
	s.Stop()
	if err != nil {
		if errors.Is(err, models.ErrPaymentErrorPaymentTimeout) {
			yellowBold.Println("The payment is still in flight, check list-payments later")
		}
		return err
	}
	printJson(response.Payment)
	return nil
}

var receivePaymentCommand = &cli.Command{
	Name:      "receive-payment",
	Category:  "Payments",
	Usage:     "Creates a lightning invoice that is claimed to the wallet once paid",
	ArgsUsage: "amount",
	Flags: []cli.Flag{
		yesFlag,
		&cli.BoolFlag{Name: "qr", Usage: "Prints the invoice as QR code"},
	},
	Action: requireNArgs(1, withSdk(receivePayment)),
}

func receivePayment(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
	amount, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	prepared, err := sdk.PrepareReceivePayment(models.PrepareReceiveRequest{PayerAmountSat: amount})
	if err != nil {
		return err
	}
	message := fmt.Sprintf("Receiving %d sats costs %d sats in fees. Do you want to continue?", amount, prepared.FeesSat)
	if !ctx.Bool("yes") && !prompt(message) {
		return nil
	}

	response, err := sdk.ReceivePayment(*prepared)
	if err != nil {
		return err
	}

	yellowBold.Println("Invoice")
	fmt.Println(response.Invoice)
	if ctx.Bool("qr") {
		if err := printQr(strings.ToUpper(response.Invoice)); err != nil {
			return err
		}
	}
	fmt.Printf("Swap ID: %s\n", response.Id)
	return nil
}

var lnUrlPayCommand = &cli.Command{
	Name:      "lnurl-pay",
	Category:  "Payments",
	Usage:     "Pays an lnurl or lightning address",
	ArgsUsage: "lnurl",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "amount", Usage: "Amount in sats, asked for if not set"},
		&cli.StringFlag{Name: "comment", Usage: "Comment sent to the recipient"},
	},
	Action: requireNArgs(1, withSdk(lnUrlPay)),
}

func askAmount(data models.LnUrlPayRequestData) (uint64, error) {
	minSat, maxSat := (data.MinSendable+999)/1000, data.MaxSendable/1000
	var raw string
	err := survey.AskOne(&survey.Input{
		Message: fmt.Sprintf("Amount in sats (%d - %d)", minSat, maxSat),
	}, &raw, survey.WithValidator(func(answer any) error {
		amount, err := strconv.ParseUint(answer.(string), 10, 64)
		if err != nil {
			return err
		}
		if amount < minSat || amount > maxSat {
			return fmt.Errorf("amount has to be between %d and %d", minSat, maxSat)
		}
		return nil
	}))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

func lnUrlPay(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
	input, err := liquidsdk.Parse(ctx.Context, ctx.Args().First())
	if err != nil {
		return err
	}
	payRequest, ok := input.(models.InputTypeLnUrlPay)
	if !ok {
		return fmt.Errorf("input is not an lnurl pay request but %T", input)
	}

	amount := ctx.Uint64("amount")
	if amount == 0 {
		if amount, err = askAmount(payRequest.Data); err != nil {
			return err
		}
	}

	request := models.LnUrlPayRequest{Data: payRequest.Data, AmountMsat: amount * 1000}
	if comment := ctx.String("comment"); comment != "" {
		request.Comment = &comment
	}

	s := newSpinner("Paying...")
	s.Start()
	result, err := sdk.LnUrlPay(ctx.Context, request)
	s.Stop()
	if err != nil {
		return err
	}

	switch result := result.(type) {
	case models.LnUrlPayResultEndpointSuccess:
		printJson(result.Data.Payment)
		if action := result.Data.SuccessAction; action != nil {
			yellowBold.Println("Message from the recipient")
			fmt.Println(strings.TrimSpace(action.Description + " " + action.Message + " " + action.Url))
		}
	case models.LnUrlPayResultEndpointError:
		return fmt.Errorf("lnurl service returned an error: %s", result.Data.Reason)
	case models.LnUrlPayResultPayError:
		return fmt.Errorf("payment of %s failed: %s", result.Data.PaymentHash, result.Data.Reason)
	}
	return nil
}

var parseCommand = &cli.Command{
	Name:      "parse",
	Category:  "Tools",
	Usage:     "Detects what kind of payment destination the input is",
	ArgsUsage: "input",
	Action: requireNArgs(1, func(ctx *cli.Context) error {
		parsed, err := liquidsdk.Parse(ctx.Context, ctx.Args().First())
		if err != nil {
			return err
		}
		yellowBold.Println(strings.TrimPrefix(fmt.Sprintf("%T", parsed), "models.InputType"))
		printJson(parsed)
		return nil
	}),
}

var parseInvoiceCommand = &cli.Command{
	Name:      "parse-invoice",
	Category:  "Tools",
	Usage:     "Decodes a bolt11 invoice",
	ArgsUsage: "invoice",
	Flags:     []cli.Flag{jsonFlag},
	Action:    requireNArgs(1, parseInvoice),
}

func parseInvoice(ctx *cli.Context) error {
	invoice, err := liquidsdk.ParseInvoice(ctx.Args().First())
	if err != nil {
		return err
	}
	if ctx.Bool("json") {
		printJson(invoice)
		return nil
	}

	fmt.Printf("Network: %s\n", invoice.Network)
	fmt.Printf("Payment hash: %s\n", invoice.PaymentHash)
	fmt.Printf("Payee: %s\n", invoice.PayeePubkey)
	if invoice.AmountMsat != nil {
		fmt.Printf("Amount: %d msat\n", *invoice.AmountMsat)
	}
	if invoice.Description != nil {
		fmt.Printf("Description: %s\n", *invoice.Description)
	}
	fmt.Printf("Expires: %s\n", formatTime(uint32(invoice.Timestamp+invoice.Expiry)))

	if len(invoice.RoutingHints) == 0 {
		return nil
	}
	tbl := table.New("Hint", "Node", "Channel", "Base Fee", "Fee Rate", "CLTV Delta")
	tbl.WithHeaderFormatter(color.New(color.FgGreen, color.Underline).SprintfFunc())
	for i, hint := range invoice.RoutingHints {
		for _, hop := range hint.Hops {
			scid := lightning.ShortChannelId(hop.ShortChannelId)
			tbl.AddRow(i, hop.SrcNodeId, scid, hop.FeesBaseMsat, hop.FeesProportionalMillionths, hop.CltvExpiryDelta)
		}
	}
	fmt.Println()
	yellowBold.Println("Routing Hints")
	tbl.Print()
	return nil
}

var backupPathFlag = &cli.StringFlag{
	Name:  "path",
	Usage: "Path of the backup file, defaults to backup.sql in the network directory",
}

func backupPath(ctx *cli.Context) *string {
	if !ctx.IsSet("path") {
		return nil
	}
	path := ctx.String("path")
	return &path
}

var backupCommand = &cli.Command{
	Name:     "backup",
	Category: "Storage",
	Usage:    "Writes a backup of payments and swaps",
	Flags:    []cli.Flag{backupPathFlag},
	Action: withSdk(func(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
		if err := sdk.Backup(models.BackupRequest{BackupPath: backupPath(ctx)}); err != nil {
			return err
		}
		fmt.Println("Backup written")
		return nil
	}),
}

var restoreCommand = &cli.Command{
	Name:     "restore",
	Category: "Storage",
	Usage:    "Replaces payments and swaps with a backup",
	Flags:    []cli.Flag{backupPathFlag, yesFlag},
	Action: withSdk(func(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
		if !ctx.Bool("yes") && !prompt("Restoring overwrites all payments and swaps. Do you want to continue?") {
			return nil
		}
		if err := sdk.Restore(models.RestoreRequest{BackupPath: backupPath(ctx)}); err != nil {
			return err
		}
		fmt.Println("Backup restored")
		return nil
	}),
}

var emptyCacheCommand = &cli.Command{
	Name:     "empty-cache",
	Category: "Storage",
	Usage:    "Drops the cached wallet state, the next sync starts from scratch",
	Action: withSdk(func(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
		if err := sdk.EmptyWalletCache(); err != nil {
			return err
		}
		fmt.Println("Wallet cache emptied")
		return nil
	}),
}

var listenCommand = &cli.Command{
	Name:     "listen",
	Category: "Info",
	Usage:    "Prints sdk events until interrupted",
	Flags:    []cli.Flag{jsonFlag},
	Action:   withSdk(listen),
}

func listen(ctx *cli.Context, sdk *liquidsdk.LiquidSdk) error {
	id, err := sdk.AddEventListener(models.EventListenerFunc(func(event models.SdkEvent) {
		name := strings.TrimPrefix(fmt.Sprintf("%T", event), "models.SdkEvent")
		if ctx.Bool("json") {
			printJson(map[string]any{"event": name, "details": event})
			return
		}
		yellowBold.Printf("Event: %s\n", name)
		if details, ok := eventPayment(event); ok {
			fmt.Printf("%s of %d sats is %s\n", details.PaymentType, details.AmountSat, details.Status)
		}
	}))
	if err != nil {
		return err
	}
	defer func() {
		_ = sdk.RemoveEventListener(id)
	}()

	fmt.Println("Listening for events, press ctrl+c to stop")
	<-ctx.Context.Done()
	return nil
}

func eventPayment(event models.SdkEvent) (models.Payment, bool) {
	switch event := event.(type) {
	case models.SdkEventPaymentFailed:
		return event.Details, true
	case models.SdkEventPaymentPending:
		return event.Details, true
	case models.SdkEventPaymentRefunded:
		return event.Details, true
	case models.SdkEventPaymentRefundPending:
		return event.Details, true
	case models.SdkEventPaymentSucceeded:
		return event.Details, true
	case models.SdkEventPaymentWaitingConfirmation:
		return event.Details, true
	}
	return models.Payment{}, false
}

var showConfigCommand = &cli.Command{
	Name:     "show-config",
	Category: "Tools",
	Usage:    "Prints the effective configuration in the format of liquid-sdk.toml",
	Action: func(ctx *cli.Context) error {
		dumped, err := getConfig(ctx).Dump()
		if err != nil {
			return err
		}
		fmt.Print(dumped)
		return nil
	},
}
