package onchain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

var ErrNoProviders = errors.New("no chain provider configured")

// MultiChainProvider answers chain queries from the configured third party providers.
// Boltz is only trusted when none of them could answer, except for broadcasting which goes through everyone.
type MultiChainProvider struct {
	Providers []HistoryProvider
	Boltz     HistoryProvider
}

var _ HistoryProvider = &MultiChainProvider{}

// askProviders queries the providers in order and merges their answers with combine, or takes the first
// answer when combine is nil. Boltz is asked when no provider answered and fallback is set.
func askProviders[T any](
	m MultiChainProvider,
	action string,
	fallback bool,
	query func(provider HistoryProvider) (T, error),
	combine func(current, next T) T,
) (T, error) {
	var result T
	var errs *multierror.Error
	answered := false
	for _, provider := range m.Providers {
		value, err := query(provider)
		if err != nil {
			logger.Debugf("Could not %s via %v: %v", action, provider, err)
			errs = multierror.Append(errs, err)
			continue
		}
		if combine == nil {
			return value, nil
		}
		if answered {
			result = combine(result, value)
		} else {
			result = value
		}
		answered = true
	}
	if answered {
		return result, nil
	}

	if fallback && m.Boltz != nil {
		if errs != nil {
			logger.Warnf("All providers failed to %s, falling back to boltz: %v", action, errs)
		}
		return query(m.Boltz)
	}
	if errs == nil {
		return result, fmt.Errorf("could not %s: %w", action, ErrNoProviders)
	}
	return result, fmt.Errorf("all providers failed to %s: %w", action, errs)
}

func (m MultiChainProvider) GetRawTransaction(txId string) (string, error) {
	return askProviders(m, "get transaction "+txId, true, func(provider HistoryProvider) (string, error) {
		return provider.GetRawTransaction(txId)
	}, nil)
}

// BroadcastTransaction hands the transaction to every provider including boltz and succeeds if any accepted it
func (m MultiChainProvider) BroadcastTransaction(txHex string) (string, error) {
	providers := m.Providers
	if m.Boltz != nil {
		providers = append(providers[:len(providers):len(providers)], m.Boltz)
	}
	if len(providers) == 0 {
		return "", ErrNoProviders
	}

	var lock sync.Mutex
	var txId string
	var errs *multierror.Error
	var group errgroup.Group
	for _, provider := range providers {
		group.Go(func() error {
			result, err := provider.BroadcastTransaction(txHex)
			lock.Lock()
			defer lock.Unlock()
			if err != nil {
				logger.Debugf("Could not broadcast transaction via %v: %v", provider, err)
				errs = multierror.Append(errs, err)
			} else {
				txId = result
			}
			return nil
		})
	}
	_ = group.Wait()

	if txId == "" {
		return "", fmt.Errorf("all providers failed to broadcast: %w", errs)
	}
	return txId, nil
}

// IsTransactionConfirmed asks boltz only when no provider answered since it would always be believed otherwise
func (m MultiChainProvider) IsTransactionConfirmed(txId string) (bool, error) {
	return askProviders(m, "check confirmation of "+txId, true, func(provider HistoryProvider) (bool, error) {
		return provider.IsTransactionConfirmed(txId)
	}, func(current, next bool) bool {
		return current || next
	})
}

// GetBlockHeight returns the highest height known to the providers. Boltz is excluded unless nobody answered
// because providers lagging behind its height would see our transactions as unconfirmed.
func (m MultiChainProvider) GetBlockHeight() (uint32, error) {
	return askProviders(m, "get block height", true, func(provider HistoryProvider) (uint32, error) {
		return provider.GetBlockHeight()
	}, func(current, next uint32) uint32 {
		return max(current, next)
	})
}

func (m MultiChainProvider) EstimateFee() (float64, error) {
	for _, provider := range m.Providers {
		if fee, err := provider.EstimateFee(); err == nil {
			return fee, nil
		}
	}
	if m.Boltz != nil {
		return m.Boltz.EstimateFee()
	}
	return 0, errors.New("no fee found")
}

// GetScriptHistory never asks boltz since it can not answer it
func (m MultiChainProvider) GetScriptHistory(script []byte) ([]*HistoryItem, error) {
	return askProviders(m, "get script history", false, func(provider HistoryProvider) ([]*HistoryItem, error) {
		return provider.GetScriptHistory(script)
	}, nil)
}

func (m MultiChainProvider) Disconnect() {
	for _, provider := range m.Providers {
		provider.Disconnect()
	}
	if m.Boltz != nil {
		m.Boltz.Disconnect()
	}
}
