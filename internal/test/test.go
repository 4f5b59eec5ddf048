package test

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	mathrand "math/rand/v2"
	"testing"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/database"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/stretchr/testify/require"
)

const (
	WalletMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	WalletPubkey   = "03d902f35f560e0470c63313c7369168d9d7df2d49bf295fd9fb7cb109ccee0494"
)

func InitLogger() {
	logger.Init(logger.Options{Level: "debug"})
}

func RandomId() string {
	return fmt.Sprint(mathrand.Uint32())
}

func PastDate(duration time.Duration) time.Time {
	return time.Now().Add(-duration)
}

func InMemoryDatabase(t *testing.T) *database.Database {
	db := &database.Database{Path: ":memory:"}
	require.NoError(t, db.Connect())
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func Preimage(t *testing.T) ([]byte, [32]byte) {
	preimage := make([]byte, 32)
	_, err := rand.Read(preimage)
	require.NoError(t, err)
	return preimage, sha256.Sum256(preimage)
}

type InvoiceOptions struct {
	Network     *chaincfg.Params
	AmountSat   uint64
	PaymentHash [32]byte
	Expiry      time.Duration
	CreatedAt   time.Time
	Description string
}

// NewInvoice signs a bolt11 invoice with a random node key
func NewInvoice(t *testing.T, options InvoiceOptions) string {
	if options.Network == nil {
		options.Network = &chaincfg.TestNet3Params
	}
	if options.CreatedAt.IsZero() {
		options.CreatedAt = time.Now()
	}
	if options.Expiry == 0 {
		options.Expiry = time.Hour
	}

	invoiceOptions := []func(*zpay32.Invoice){
		zpay32.Description(options.Description),
		zpay32.Expiry(options.Expiry),
		zpay32.CLTVExpiry(80),
	}
	if options.AmountSat != 0 {
		invoiceOptions = append(invoiceOptions, zpay32.Amount(lnwire.NewMSatFromSatoshis(btcutil.Amount(options.AmountSat))))
	}

	invoice, err := zpay32.NewInvoice(options.Network, options.PaymentHash, options.CreatedAt, invoiceOptions...)
	require.NoError(t, err)

	nodeKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	encoded, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			return ecdsa.SignCompact(nodeKey, chainhash.HashB(msg), true)
		},
	})
	require.NoError(t, err)
	return encoded
}

type FakeSwaps struct {
	SendSwaps    []models.SendSwap
	ReceiveSwaps []models.ReceiveSwap
}

func setSwapId(swapId *string) {
	if *swapId == "" {
		*swapId = RandomId()
	}
}

func privateKey(t *testing.T, key **btcec.PrivateKey) {
	if *key == nil {
		var err error
		*key, err = btcec.NewPrivateKey()
		require.NoError(t, err)
	}
}

func (f FakeSwaps) Create(t *testing.T, db *database.Database) {
	for _, swap := range f.SendSwaps {
		setSwapId(&swap.Id)
		privateKey(t, &swap.RefundPrivateKey)
		if swap.Invoice == "" {
			swap.Invoice = "lntb" + swap.Id
		}
		if swap.CreatedAt.IsZero() {
			swap.CreatedAt = time.Now()
		}
		require.NoError(t, db.CreateSendSwap(swap))
	}

	for _, swap := range f.ReceiveSwaps {
		setSwapId(&swap.Id)
		privateKey(t, &swap.ClaimPrivateKey)
		if swap.Invoice == "" {
			swap.Invoice = "lntb" + swap.Id
		}
		if swap.Preimage == nil {
			swap.Preimage, _ = Preimage(t)
		}
		if swap.CreatedAt.IsZero() {
			swap.CreatedAt = time.Now()
		}
		require.NoError(t, db.CreateReceiveSwap(swap))
	}
}
