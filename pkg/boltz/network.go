package boltz

import (
	"errors"

	btc "github.com/btcsuite/btcd/chaincfg"
	liquid "github.com/vulpemventures/go-elements/network"
)

type Network struct {
	// lightning invoices of this network are paid with swaps on Liquid
	Btc    *btc.Params
	Liquid *liquid.Network
	Name   string
	// confidential p2tr address used to estimate lockup fees
	DummyLockupAddress string
	DefaultBoltzUrl    string
	DefaultElectrumUrl string
	MempoolUrl         string
}

var MainNet = &Network{
	Btc:                &btc.MainNetParams,
	Liquid:             &liquid.Liquid,
	Name:               "liquid",
	DummyLockupAddress: "lq1pqtfldcsfag6u5lv20f85zjp68x99er90jxlqv3yc3ucy9zd3tt0ndztxkr9jaxynl8l4hvsfch7slg7l52pfw49te3wrhwazr9lq9s6y2cgwtpn9wv7z",
	DefaultBoltzUrl:    "https://api.boltz.exchange",
	DefaultElectrumUrl: "blockstream.info:995",
	MempoolUrl:         "https://blockstream.info/liquid",
}

var TestNet = &Network{
	Btc:                &btc.TestNet3Params,
	Liquid:             &liquid.Testnet,
	Name:               "liquid-testnet",
	DummyLockupAddress: "tlq1pqghwg6s98dfhtrncxck6rl359eckxdwrk4680npy4m6q2lgud9y6p0w2jytj4akr2zhwze587d823zu5rg8vwfq0ehkk8c74lrvt77kmwqr5vwy7p47u",
	DefaultBoltzUrl:    "https://api.testnet.boltz.exchange",
	DefaultElectrumUrl: "blockstream.info:465",
	MempoolUrl:         "https://liquid.network/liquidtestnet",
}

var Regtest = &Network{
	Btc:                &btc.RegressionNetParams,
	Liquid:             &liquid.Regtest,
	Name:               "regtest",
	DummyLockupAddress: "el1pqfg7mxz4cnpu8sj2pza285vh062eq0sxwt982nprnx0d975tvmzpdcqdwvpsds5q664fp90645wlze8544j8x59vzhhy6hylmad6ycjw07nsa6thmkz7",
	DefaultBoltzUrl:    "http://127.0.0.1:9001",
	DefaultElectrumUrl: "127.0.0.1:19002",
	MempoolUrl:         "http://127.0.0.1:4003",
}

func ParseChain(network string) (*Network, error) {
	switch network {
	case "liquid", "mainnet":
		// #reckless
		return MainNet, nil
	case "liquid-testnet", "testnet":
		return TestNet, nil
	case "regtest":
		return Regtest, nil
	default:
		return nil, errors.New("Network " + network + " not supported")
	}
}

// CoinType is the bip44 coin type of the liquid chain.
func (network *Network) CoinType() uint32 {
	if network == MainNet {
		return 1776
	}
	return 1
}
