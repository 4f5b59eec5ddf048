package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/vulpemventures/go-elements/payment"
)

const (
	chainExternal uint32 = 0
	chainInternal uint32 = 1
)

type walletAddress struct {
	keyPath
	Address     string
	Script      []byte
	PubKey      *btcec.PublicKey
	BlindingKey *btcec.PrivateKey
}

// scriptCode is the p2pkh script signed over when spending a p2wpkh output
func (address *walletAddress) scriptCode(signer *Signer) []byte {
	return payment.FromPublicKey(address.PubKey, signer.network.Liquid, nil).Script
}

func (signer *Signer) deriveAddress(chain uint32, index uint32) (*walletAddress, error) {
	pubKey, err := signer.accountPubKey(chain, index)
	if err != nil {
		return nil, err
	}
	script := payment.FromPublicKey(pubKey, signer.network.Liquid, nil).WitnessScript

	blindingKey, blindingPubKey, err := signer.blinding.DeriveKey(script)
	if err != nil {
		return nil, err
	}

	address, err := payment.FromPublicKey(pubKey, signer.network.Liquid, blindingPubKey).ConfidentialWitnessPubKeyHash()
	if err != nil {
		return nil, err
	}

	return &walletAddress{
		keyPath:     keyPath{Chain: chain, Index: index},
		Address:     address,
		Script:      script,
		PubKey:      pubKey,
		BlindingKey: blindingKey,
	}, nil
}
