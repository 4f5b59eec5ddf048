package main

import (
	"testing"

	"github.com/breez/breez-liquid-sdk-go/internal/config"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

func TestMnemonic(t *testing.T) {
	cfg, _, err := config.LoadConfig(t.TempDir(), nil)
	require.NoError(t, err)

	created, err := mnemonic(cfg)
	require.NoError(t, err)
	require.True(t, bip39.IsMnemonicValid(created))

	reused, err := mnemonic(cfg)
	require.NoError(t, err)
	require.Equal(t, created, reused)
}

func TestEventPayment(t *testing.T) {
	payment := models.Payment{AmountSat: 1000, PaymentType: models.Send, Status: models.Complete}

	details, ok := eventPayment(models.SdkEventPaymentSucceeded{Details: payment})
	require.True(t, ok)
	require.Equal(t, payment, details)

	_, ok = eventPayment(models.SdkEventSynced{})
	require.False(t, ok)
}

func TestFormatting(t *testing.T) {
	require.Equal(t, "-", formatTime(0))
	require.NotEqual(t, "-", formatTime(1700000000))
	require.Equal(t, "-", optional(""))
	require.Equal(t, "id", optional("id"))
}

func TestFilterPayments(t *testing.T) {
	payments := []models.Payment{
		{TxId: "sent", PaymentType: models.Send, Status: models.Complete},
		{TxId: "sending", PaymentType: models.Send, Status: models.Pending},
		{TxId: "received", PaymentType: models.Receive, Status: models.Complete},
	}
	txIds := func(payments []models.Payment) (ids []string) {
		for _, payment := range payments {
			ids = append(ids, payment.TxId)
		}
		return ids
	}

	tests := []struct {
		desc        string
		paymentType string
		status      string
		expected    []string
	}{
		{"NoFilter", "", "", []string{"sent", "sending", "received"}},
		{"Type", "send", "", []string{"sent", "sending"}},
		{"Status", "", "complete", []string{"sent", "received"}},
		{"Both", "receive", "complete", []string{"received"}},
		{"NoMatch", "receive", "timed_out", nil},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			filtered, err := filterPayments(payments, tc.paymentType, tc.status)
			require.NoError(t, err)
			require.Equal(t, tc.expected, txIds(filtered))
		})
	}

	_, err := filterPayments(payments, "swap", "")
	require.Error(t, err)
	_, err = filterPayments(payments, "", "done")
	require.Error(t, err)
}
