package electrum

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BoltzExchange/go-electrum/electrum"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
)

type Client struct {
	client *electrum.Client
	ctx    context.Context

	blockHeight atomic.Uint32

	timestamps     map[int32]uint32
	timestampsLock sync.Mutex
}

var _ onchain.HistoryProvider = &Client{}

func NewClient(options onchain.ElectrumOptions) (*Client, error) {
	// Establishing a new SSL connection to an ElectrumX server
	c := &Client{ctx: context.Background(), timestamps: make(map[int32]uint32)}
	connectCtx, connectCancel := c.timeoutContext()
	defer connectCancel()
	var err error
	if options.SSL {
		c.client, err = electrum.NewClientSSL(connectCtx, options.Url, &tls.Config{})
	} else {
		c.client, err = electrum.NewClientTCP(connectCtx, options.Url)
	}
	if err != nil {
		return nil, err
	}

	// Making sure connection is not closed with timed "client.ping" call
	go func() {
		for !c.client.IsShutdown() {
			ctx, cancel := c.timeoutContext()
			if err := c.client.Ping(ctx); err != nil {
				logger.Errorf("failed to ping electrum server: %s", err)
			}
			cancel()
			time.Sleep(60 * time.Second)
		}
	}()

	ctx, cancel := c.timeoutContext()
	defer cancel()
	// Making sure we declare to the server what protocol we want to use
	if _, _, err := c.client.ServerVersion(ctx); err != nil {
		return nil, err
	}

	if err := c.subscribeHeaders(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) timeoutContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, 5*time.Second)
}

func (c *Client) subscribeHeaders() error {
	ctx, cancel := c.timeoutContext()
	defer cancel()
	results, err := c.client.SubscribeHeaders(ctx)
	if err != nil {
		return err
	}
	go func() {
		for result := range results {
			if c.client.IsShutdown() {
				return
			}
			c.blockHeight.Store(uint32(result.Height))
		}
	}()
	return nil
}

func (c *Client) GetBlockHeight() (uint32, error) {
	return c.blockHeight.Load(), nil
}

func (c *Client) EstimateFee() (float64, error) {
	ctx, cancel := c.timeoutContext()
	defer cancel()
	fee, err := c.client.GetFee(ctx, 2)
	return float64(fee), err
}

func (c *Client) GetRawTransaction(txId string) (string, error) {
	ctx, cancel := c.timeoutContext()
	defer cancel()
	return c.client.GetRawTransaction(ctx, txId)
}

func (c *Client) BroadcastTransaction(txHex string) (string, error) {
	ctx, cancel := c.timeoutContext()
	defer cancel()
	return c.client.BroadcastTransaction(ctx, txHex)
}

func (c *Client) Disconnect() {
	c.client.Shutdown()
}

func (c *Client) IsTransactionConfirmed(txId string) (bool, error) {
	ctx, cancel := c.timeoutContext()
	defer cancel()
	transaction, err := c.client.GetTransaction(ctx, txId)
	if err != nil {
		return false, err
	}
	return transaction.Confirmations > 0, nil
}

// ScriptHash is the electrum representation of an output script: its reversed sha256 in hex
func ScriptHash(script []byte) string {
	hash := sha256.Sum256(script)
	slices.Reverse(hash[:])
	return hex.EncodeToString(hash[:])
}

// liquid headers share the bitcoin prefix: version, previous block and merkle root before the time
const headerTimeOffset = 4 + 32 + 32

func (c *Client) blockTimestamp(height int32) (uint32, error) {
	c.timestampsLock.Lock()
	defer c.timestampsLock.Unlock()
	if timestamp, ok := c.timestamps[height]; ok {
		return timestamp, nil
	}

	ctx, cancel := c.timeoutContext()
	defer cancel()
	header, err := c.client.GetBlockHeader(ctx, uint32(height))
	if err != nil {
		return 0, err
	}
	raw, err := hex.DecodeString(header.Header)
	if err != nil {
		return 0, err
	}
	if len(raw) < headerTimeOffset+4 {
		return 0, fmt.Errorf("block header at %d too short", height)
	}
	timestamp := binary.LittleEndian.Uint32(raw[headerTimeOffset:])
	c.timestamps[height] = timestamp
	return timestamp, nil
}

func (c *Client) GetScriptHistory(script []byte) ([]*onchain.HistoryItem, error) {
	ctx, cancel := c.timeoutContext()
	defer cancel()
	history, err := c.client.GetHistory(ctx, ScriptHash(script))
	if err != nil {
		return nil, err
	}
	result := make([]*onchain.HistoryItem, 0, len(history))
	for _, entry := range history {
		item := &onchain.HistoryItem{
			TxId:   entry.Hash,
			Height: int64(entry.Height),
		}
		if entry.Height > 0 {
			item.Timestamp, err = c.blockTimestamp(entry.Height)
			if err != nil {
				logger.Warnf("Could not get timestamp of block %d: %v", entry.Height, err)
			}
		}
		result = append(result, item)
	}
	return result, nil
}

func (c *Client) String() string {
	return "electrum"
}
