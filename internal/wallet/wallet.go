package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"golang.org/x/sync/errgroup"
)

const (
	gapLimit = 20

	fetchConcurrency = 8

	// local transactions the backend never reported are dropped after this
	localTransactionExpiry = 10 * time.Minute
)

type Wallet struct {
	signer   *Signer
	chain    *onchain.Onchain
	cacheDir string

	lock      sync.RWMutex
	cache     *walletCache
	state     *walletState
	addresses map[string]*walletAddress
	derived   [2][]*walletAddress

	scanLock sync.Mutex
	sendLock sync.Mutex
}

var _ onchain.Wallet = &Wallet{}

// New loads the encrypted cache from cacheDir. The wallet is usable right away, a FullScan
// brings it up to date with the chain.
func New(signer *Signer, chain *onchain.Onchain, cacheDir string) (*Wallet, error) {
	w := &Wallet{
		signer:    signer,
		chain:     chain,
		cacheDir:  cacheDir,
		addresses: make(map[string]*walletAddress),
	}

	w.lock.Lock()
	defer w.lock.Unlock()
	if err := w.applyCache(w.loadCache()); err != nil {
		logger.Warnf("Could not apply wallet cache, starting from scratch: %v", err)
		if err := w.applyCache(newWalletCache()); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *Wallet) Pubkey() string {
	return w.signer.Pubkey()
}

// deriveUntil makes sure the first count addresses of a chain are known. Callers hold the lock.
func (w *Wallet) deriveUntil(chain uint32, count uint32) error {
	for index := uint32(len(w.derived[chain])); index < count; index++ {
		address, err := w.signer.deriveAddress(chain, index)
		if err != nil {
			return err
		}
		w.derived[chain] = append(w.derived[chain], address)
		w.addresses[string(address.Script)] = address
	}
	return nil
}

func (w *Wallet) addressRange(chain uint32, start uint32, end uint32) ([]*walletAddress, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if err := w.deriveUntil(chain, end); err != nil {
		return nil, err
	}
	return append([]*walletAddress(nil), w.derived[chain][start:end]...), nil
}

// applyCache recomputes the wallet state. Callers hold the lock.
func (w *Wallet) applyCache(cache *walletCache) error {
	for _, chain := range []uint32{chainExternal, chainInternal} {
		if err := w.deriveUntil(chain, uint32(cache.LastUsed[chain]+1+gapLimit)); err != nil {
			return err
		}
	}
	state, err := w.computeState(cache)
	if err != nil {
		return err
	}
	w.cache = cache
	w.state = state
	return nil
}

func (w *Wallet) unusedAddress(chain uint32) (*walletAddress, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	index := uint32(w.cache.LastUsed[chain] + 1)
	if err := w.deriveUntil(chain, index+1); err != nil {
		return nil, err
	}
	return w.derived[chain][index], nil
}

// NewAddress returns the first unused receive address
func (w *Wallet) NewAddress() (string, error) {
	address, err := w.unusedAddress(chainExternal)
	if err != nil {
		return "", err
	}
	return address.Address, nil
}

func (w *Wallet) GetBalance() (*onchain.Balance, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.state.balance(), nil
}

func (w *Wallet) GetTransactions() ([]*onchain.WalletTransaction, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return append([]*onchain.WalletTransaction(nil), w.state.transactions...), nil
}

func (w *Wallet) Tip() uint32 {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.cache.Tip
}

// scanChain queries the history of a chain in batches until gapLimit consecutive addresses are unused
func (w *Wallet) scanChain(ctx context.Context, chain uint32, history map[string]*onchain.HistoryItem) (int64, error) {
	lastUsed := int64(-1)
	for start := uint32(0); ; start += gapLimit {
		addresses, err := w.addressRange(chain, start, start+gapLimit)
		if err != nil {
			return 0, err
		}

		results := make([][]*onchain.HistoryItem, len(addresses))
		eg, groupCtx := errgroup.WithContext(ctx)
		for i, address := range addresses {
			eg.Go(func() error {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				items, err := w.chain.Provider.GetScriptHistory(address.Script)
				if err != nil {
					return fmt.Errorf("could not get history of %s: %w", address.Address, err)
				}
				results[i] = items
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return 0, err
		}

		for i, items := range results {
			if len(items) > 0 {
				lastUsed = int64(start) + int64(i)
			}
			for _, item := range items {
				history[item.TxId] = item
			}
		}

		if int64(start+gapLimit)-lastUsed-1 >= gapLimit {
			return lastUsed, nil
		}
	}
}

func (w *Wallet) fetchTransactions(ctx context.Context, ids []string) (map[string]string, error) {
	var lock sync.Mutex
	result := make(map[string]string, len(ids))

	eg, groupCtx := errgroup.WithContext(ctx)
	eg.SetLimit(fetchConcurrency)
	for _, id := range ids {
		eg.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			hex, err := w.chain.Provider.GetRawTransaction(id)
			if err != nil {
				return fmt.Errorf("could not fetch transaction %s: %w", id, err)
			}
			lock.Lock()
			defer lock.Unlock()
			result[id] = hex
			return nil
		})
	}
	return result, eg.Wait()
}

// FullScan looks up the history of all wallet scripts and updates the cache
func (w *Wallet) FullScan(ctx context.Context) error {
	w.scanLock.Lock()
	defer w.scanLock.Unlock()

	start := time.Now()
	tip, err := w.chain.Provider.GetBlockHeight()
	if err != nil {
		return fmt.Errorf("could not get block height: %w", err)
	}

	history := make(map[string]*onchain.HistoryItem)
	var lastUsed [2]int64
	for _, chain := range []uint32{chainExternal, chainInternal} {
		lastUsed[chain], err = w.scanChain(ctx, chain, history)
		if err != nil {
			return err
		}
	}

	w.lock.RLock()
	known := w.cache.Transactions
	w.lock.RUnlock()

	var missing []string
	for id := range history {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	fetched, err := w.fetchTransactions(ctx, missing)
	if err != nil {
		return err
	}

	cache := &walletCache{
		Tip:          tip,
		LastUsed:     lastUsed,
		Transactions: make(map[string]*cachedTransaction, len(history)),
	}
	for id, item := range history {
		hex, ok := fetched[id]
		if !ok {
			hex = known[id].Hex
		}
		cache.Transactions[id] = &cachedTransaction{
			Hex:       hex,
			Height:    max(item.Height, 0),
			Timestamp: item.Timestamp,
		}
	}
	for id, cached := range known {
		if _, ok := history[id]; ok || !cached.Local {
			continue
		}
		if time.Since(time.Unix(cached.SeenAt, 0)) < localTransactionExpiry {
			cache.Transactions[id] = cached
		}
	}

	w.lock.Lock()
	err = w.applyCache(cache)
	w.lock.Unlock()
	if err != nil {
		return err
	}

	if err := w.persistCache(cache); err != nil {
		logger.Warnf("Could not persist wallet cache: %v", err)
	}
	logger.Debugf("Scanned wallet with %d transactions in %s", len(cache.Transactions), time.Since(start))
	return nil
}

// addLocalTransaction marks the outputs spent by a transaction we broadcast before the next scan sees it
func (w *Wallet) addLocalTransaction(id string, hex string, change *walletAddress) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	cache := &walletCache{
		Tip:          w.cache.Tip,
		LastUsed:     w.cache.LastUsed,
		Transactions: make(map[string]*cachedTransaction, len(w.cache.Transactions)+1),
	}
	for key, value := range w.cache.Transactions {
		cache.Transactions[key] = value
	}
	cache.Transactions[id] = &cachedTransaction{Hex: hex, Local: true, SeenAt: time.Now().Unix()}
	if change != nil {
		cache.LastUsed[change.Chain] = max(cache.LastUsed[change.Chain], int64(change.Index))
	}
	if err := w.applyCache(cache); err != nil {
		return err
	}
	return w.persistCache(cache)
}

func (w *Wallet) Disconnect() error {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.persistCache(w.cache)
}
