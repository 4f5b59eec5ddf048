package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateStateTransition(t *testing.T) {
	tests := []struct {
		from  PaymentState
		to    PaymentState
		valid bool
	}{
		{Created, Created, false},
		{Pending, Created, false},
		{Created, Pending, true},
		{Pending, Pending, true},
		{Complete, Pending, false},
		{Failed, Pending, false},
		{TimedOut, Pending, false},
		{Created, Complete, true},
		{Pending, Complete, true},
		{Complete, Complete, false},
		{Failed, Complete, false},
		{Complete, Failed, true},
		{Created, Failed, true},
		{Pending, TimedOut, true},
	}

	for _, tc := range tests {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			err := ValidateStateTransition(tc.from, tc.to)
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrPaymentErrorGeneric))
			}
		})
	}
}

func TestParseNetwork(t *testing.T) {
	network, err := ParseNetwork("LiquidTestnet")
	require.NoError(t, err)
	require.Equal(t, LiquidTestnet, network)

	network, err = ParseNetwork("mainnet")
	require.NoError(t, err)
	require.Equal(t, Liquid, network)

	_, err = ParseNetwork("signet")
	require.Error(t, err)
}
