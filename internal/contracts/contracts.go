// Package contracts is the Base mainnet address book for the GlazeCorp
// contracts and tokens the terminal reads from.
package contracts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for strings that are not 20-byte hex
// addresses, and for the zero address where a contract is required.
var ErrInvalidAddress = errors.New("contracts: invalid address")

// Base mainnet deployments.
var (
	MulticallAddress  = common.HexToAddress("0x3ec144554b484C6798A683E34c8e8E222293f323")
	MinerAddress      = common.HexToAddress("0xF69614F4Ee8D4D3879dd53d5A039eB3114C794F6")
	DonutAddress      = common.HexToAddress("0xAE4a37d554C6D6F3E398546d8566B25052e0169C")
	WETHAddress       = common.HexToAddress("0x4200000000000000000000000000000000000006")
	USDCAddress       = common.HexToAddress("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	DonutETHLPAddress = common.HexToAddress("0xD1DbB2E56533C55C3A637D13C53aeEf65c5D5703")
	UniV2Router       = common.HexToAddress("0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24")

	// LaunchpadMulticallAddress serves rig LP auctions.
	LaunchpadMulticallAddress = common.HexToAddress("0x5D16A5EB8Ac507eF417A44b8d767104dC52EFa87")
	// LSGMulticallAddress serves liquid signal governance strategy auctions.
	LSGMulticallAddress = common.HexToAddress("0x1a90e9A7f0ED2C0CB054F470e8F9c06a935B9789")

	// NativeETH is the pseudo-address aggregators use for ETH.
	NativeETH = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")
)

// Book is the set of addresses one terminal instance talks to.
type Book struct {
	Multicall common.Address `json:"multicall"`
	Miner     common.Address `json:"miner"`
	Donut     common.Address `json:"donut"`
	WETH      common.Address `json:"weth"`
	Pair      common.Address `json:"pair"` // DONUT/WETH Uniswap V2 pair
	Router    common.Address `json:"router"`
	Launchpad common.Address `json:"launchpad"` // rig auction multicall
	LSG       common.Address `json:"lsg"`       // strategy auction multicall
}

// Default returns the Base mainnet book.
func Default() Book {
	return Book{
		Multicall: MulticallAddress,
		Miner:     MinerAddress,
		Donut:     DonutAddress,
		WETH:      WETHAddress,
		Pair:      DonutETHLPAddress,
		Router:    UniV2Router,
		Launchpad: LaunchpadMulticallAddress,
		LSG:       LSGMulticallAddress,
	}
}

// Validate reports the first unset entry.
func (b Book) Validate() error {
	entries := []struct {
		name string
		addr common.Address
	}{
		{"multicall", b.Multicall},
		{"miner", b.Miner},
		{"donut", b.Donut},
		{"weth", b.WETH},
		{"pair", b.Pair},
		{"router", b.Router},
		{"launchpad", b.Launchpad},
		{"lsg", b.LSG},
	}
	for _, e := range entries {
		if e.addr == (common.Address{}) {
			return fmt.Errorf("%w: %s is the zero address", ErrInvalidAddress, e.name)
		}
	}
	return nil
}

// ParseAddress validates a hex address, with or without checksum casing.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// ParseContract is ParseAddress that also rejects the zero address.
func ParseContract(s string) (common.Address, error) {
	a, err := ParseAddress(s)
	if err != nil {
		return a, err
	}
	if a == (common.Address{}) {
		return a, fmt.Errorf("%w: zero address", ErrInvalidAddress)
	}
	return a, nil
}

// Normalize returns the lowercase 0x form used as a map key.
func Normalize(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// Symbol names a payment token for display, "TOKEN" when unknown.
func Symbol(a common.Address) string {
	switch a {
	case DonutAddress:
		return "DONUT"
	case DonutETHLPAddress:
		return "DONUT-ETH LP"
	case USDCAddress:
		return "USDC"
	case WETHAddress:
		return "WETH"
	case NativeETH:
		return "ETH"
	}
	return "TOKEN"
}
