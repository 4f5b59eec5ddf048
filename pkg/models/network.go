package models

import (
	"fmt"
	"strings"
)

type Network string

const (
	Liquid        Network = "liquid"
	LiquidTestnet Network = "liquid-testnet"
)

func ParseNetwork(network string) (Network, error) {
	switch strings.ToLower(network) {
	case "liquid", "mainnet":
		return Liquid, nil
	case "liquid-testnet", "liquidtestnet", "liquid_testnet", "testnet":
		return LiquidTestnet, nil
	default:
		return "", fmt.Errorf("network %s not supported", network)
	}
}

func (network Network) String() string {
	return string(network)
}

func (network Network) IsMainnet() bool {
	return network == Liquid
}

// UnmarshalText lets flag and toml parsers accept every alias of ParseNetwork.
func (network *Network) UnmarshalText(text []byte) (err error) {
	*network, err = ParseNetwork(string(text))
	return err
}
