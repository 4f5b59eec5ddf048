package boltz

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	liquidtx "github.com/vulpemventures/go-elements/transaction"
)

type MusigSession struct {
	*musig2.Session
	tree *SwapTree
}

func NewSigningSession(tree *SwapTree) (*MusigSession, error) {
	if err := tree.initialized(); err != nil {
		return nil, err
	}
	ctx, err := musig2.NewContext(
		tree.ourKey,
		false,
		musig2.WithTweakedContext(tree.taprootTweak),
		musig2.WithKnownSigners([]*btcec.PublicKey{tree.boltzKey, tree.ourKey.PubKey()}),
	)
	if err != nil {
		return nil, err
	}

	session, err := ctx.NewSession()
	if err != nil {
		return nil, err
	}

	return &MusigSession{session, tree}, nil
}

func decodePartialSignature(sig HexString) (*musig2.PartialSignature, error) {
	if len(sig) != 32 {
		return nil, fmt.Errorf("invalid partial signature length %d", len(sig))
	}
	s := &secp256k1.ModNScalar{}
	if overflow := s.SetByteSlice(sig); overflow {
		return nil, errors.New("partial signature exceeds curve order")
	}
	partial := musig2.NewPartialSignature(s, nil)
	return &partial, nil
}

func (session *MusigSession) registerNonce(nonce HexString) error {
	if len(nonce) != musig2.PubNonceSize {
		return fmt.Errorf("invalid nonce length %d", len(nonce))
	}
	all, err := session.RegisterPubNonce([musig2.PubNonceSize]byte(nonce))
	if err != nil {
		return err
	}
	if !all {
		return errors.New("could not combine nonces")
	}
	return nil
}

// Sign creates our partial signature for a hash boltz asked us to sign, like the cooperative claim of a submarine swap
func (session *MusigSession) Sign(hash HexString, boltzNonce HexString) (*PartialSignature, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("invalid hash length %d", len(hash))
	}
	if err := session.registerNonce(boltzNonce); err != nil {
		return nil, err
	}

	ourNonce := session.PublicNonce()
	partial, err := session.Session.Sign([32]byte(hash))
	if err != nil {
		return nil, err
	}

	b := bytes.NewBuffer(nil)
	if err := partial.Encode(b); err != nil {
		return nil, err
	}

	return &PartialSignature{
		PubNonce:         HexString(ourNonce[:]),
		PartialSignature: HexString(b.Bytes()),
	}, nil
}

// Finalize combines our and the boltz partial signature into the key path witness of input index
func (session *MusigSession) Finalize(transaction *LiquidTransaction, outputs []OutputDetails, network *Network, index int, boltzSignature *PartialSignature) error {
	if err := session.registerNonce(boltzSignature.PubNonce); err != nil {
		return err
	}

	hash := spentOutputsHash(&transaction.Transaction, network, outputs, index, false)
	if _, err := session.Session.Sign([32]byte(hash)); err != nil {
		return err
	}

	partial, err := decodePartialSignature(boltzSignature.PartialSignature)
	if err != nil {
		return fmt.Errorf("could not decode partial signature: %w", err)
	}
	haveFinal, err := session.CombineSig(partial)
	if err != nil {
		return fmt.Errorf("could not combine signatures: %w", err)
	}
	if !haveFinal {
		return errors.New("could not combine signatures")
	}

	signature := session.FinalSig().Serialize()
	transaction.Inputs[index].Witness = liquidtx.TxWitness{signature}
	return nil
}
