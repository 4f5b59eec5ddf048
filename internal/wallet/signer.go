package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/tyler-smith/go-bip39"
	"github.com/vulpemventures/go-elements/slip77"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

const (
	purposeWallet = 84
	purposeSwap   = 49
	// swap keys always use the liquid mainnet coin type
	coinTypeSwap = 1776

	accountSubmarine = 21
	accountReverse   = 42
)

// Signer keeps the mnemonic in an encrypted enclave and derives keys on demand
type Signer struct {
	network *boltz.Network
	enclave *memguard.Enclave

	masterPubKey *btcec.PublicKey
	account      *hdkeychain.ExtendedKey
	blinding     *slip77.Slip77
}

func NewSigner(mnemonic string, network *boltz.Network) (*Signer, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	signer := &Signer{
		network: network,
		enclave: memguard.NewEnclave([]byte(mnemonic)),
	}

	err := signer.withMaster(func(master *hdkeychain.ExtendedKey, seed []byte) error {
		var err error
		signer.masterPubKey, err = master.ECPubKey()
		if err != nil {
			return err
		}

		account, err := deriveHardened(master, purposeWallet, network.CoinType(), 0)
		if err != nil {
			return err
		}
		signer.account, err = account.Neuter()
		if err != nil {
			return err
		}

		signer.blinding, err = slip77.FromSeed(seed)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not derive keys: %w", err)
	}
	return signer, nil
}

func deriveHardened(key *hdkeychain.ExtendedKey, path ...uint32) (*hdkeychain.ExtendedKey, error) {
	var err error
	for _, index := range path {
		key, err = key.Derive(hdkeychain.HardenedKeyStart + index)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

func derive(key *hdkeychain.ExtendedKey, path ...uint32) (*hdkeychain.ExtendedKey, error) {
	var err error
	for _, index := range path {
		key, err = key.Derive(index)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

func (signer *Signer) withMaster(fn func(master *hdkeychain.ExtendedKey, seed []byte) error) error {
	buffer, err := signer.enclave.Open()
	if err != nil {
		return err
	}
	defer buffer.Destroy()

	seed, err := bip39.NewSeedWithErrorChecking(buffer.String(), "")
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(seed)

	master, err := hdkeychain.NewMaster(seed, signer.network.Btc)
	if err != nil {
		return err
	}
	defer master.Zero()

	return fn(master, seed)
}

// Pubkey is the compressed public key of the bip32 master key in hex
func (signer *Signer) Pubkey() string {
	return hex.EncodeToString(signer.masterPubKey.SerializeCompressed())
}

// accountPubKey derives the public key at account/chain/index
func (signer *Signer) accountPubKey(chain uint32, index uint32) (*btcec.PublicKey, error) {
	key, err := derive(signer.account, chain, index)
	if err != nil {
		return nil, err
	}
	return key.ECPubKey()
}

type keyPath struct {
	Chain uint32
	Index uint32
}

// accountPrivateKeys derives the private keys of multiple wallet addresses with a single seed access
func (signer *Signer) accountPrivateKeys(paths []keyPath) ([]*btcec.PrivateKey, error) {
	var keys []*btcec.PrivateKey
	err := signer.withMaster(func(master *hdkeychain.ExtendedKey, _ []byte) error {
		account, err := deriveHardened(master, purposeWallet, signer.network.CoinType(), 0)
		if err != nil {
			return err
		}
		for _, path := range paths {
			key, err := derive(account, path.Chain, path.Index)
			if err != nil {
				return err
			}
			private, err := key.ECPrivKey()
			if err != nil {
				return err
			}
			keys = append(keys, private)
		}
		return nil
	})
	return keys, err
}

// DeriveSwapKey returns the key used in the swap tree of the index-th swap of a type
func (signer *Signer) DeriveSwapKey(swapType boltz.SwapType, index uint32) (*btcec.PrivateKey, error) {
	account := uint32(accountSubmarine)
	if swapType == boltz.ReverseSwap {
		account = accountReverse
	}

	var private *btcec.PrivateKey
	err := signer.withMaster(func(master *hdkeychain.ExtendedKey, _ []byte) error {
		key, err := deriveHardened(master, purposeSwap, coinTypeSwap, account)
		if err != nil {
			return err
		}
		key, err = derive(key, 0, index)
		if err != nil {
			return err
		}
		private, err = key.ECPrivKey()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not derive swap key: %w", err)
	}
	return private, nil
}
