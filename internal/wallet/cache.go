package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/utils"
)

const cacheFileName = "wallet.cache"

type cachedTransaction struct {
	Hex       string `json:"hex"`
	Height    int64  `json:"height"`
	Timestamp uint32 `json:"timestamp"`
	// broadcast by us and not seen by the chain backend yet
	Local  bool  `json:"local,omitempty"`
	SeenAt int64 `json:"seenAt,omitempty"`
}

type walletCache struct {
	Tip          uint32                        `json:"tip"`
	LastUsed     [2]int64                      `json:"lastUsed"`
	Transactions map[string]*cachedTransaction `json:"transactions"`
}

func newWalletCache() *walletCache {
	return &walletCache{
		LastUsed:     [2]int64{-1, -1},
		Transactions: make(map[string]*cachedTransaction),
	}
}

func (w *Wallet) cachePath() string {
	return filepath.Join(w.cacheDir, cacheFileName)
}

func (w *Wallet) loadCache() *walletCache {
	path := w.cachePath()
	if !utils.FileExists(path) {
		return newWalletCache()
	}

	encrypted, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf("Could not read wallet cache: %v", err)
		return newWalletCache()
	}
	raw, err := decrypt(encrypted, w.signer.Pubkey())
	if err != nil {
		logger.Warnf("Could not decrypt wallet cache, starting from scratch: %v", err)
		return newWalletCache()
	}

	cache := newWalletCache()
	if err := json.Unmarshal(raw, cache); err != nil {
		logger.Warnf("Could not parse wallet cache: %v", err)
		return newWalletCache()
	}
	return cache
}

func (w *Wallet) persistCache(cache *walletCache) error {
	if err := utils.CreateDirIfNotExists(w.cacheDir); err != nil {
		return err
	}
	raw, err := json.Marshal(cache)
	if err != nil {
		return err
	}
	encrypted, err := encrypt(raw, w.signer.Pubkey())
	if err != nil {
		return err
	}

	path := w.cachePath()
	if err := os.WriteFile(path+".tmp", encrypted, 0600); err != nil {
		return err
	}
	return os.Rename(path+".tmp", path)
}

// ResetCache deletes the cache directory and starts over with an empty cache. The next FullScan rebuilds it.
func (w *Wallet) ResetCache() error {
	w.scanLock.Lock()
	defer w.scanLock.Unlock()
	w.lock.Lock()
	defer w.lock.Unlock()

	if err := os.RemoveAll(w.cacheDir); err != nil {
		return err
	}
	if err := utils.CreateDirIfNotExists(w.cacheDir); err != nil {
		return err
	}
	logger.Info("Emptied wallet cache")
	return w.applyCache(newWalletCache())
}
