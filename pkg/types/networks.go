package types

// NetworkCode names the chain the signer serves.
type NetworkCode string

const (
	NetworkMainnet NetworkCode = "mainnet"
	NetworkTestnet NetworkCode = "testnet"
	NetworkMocknet NetworkCode = "mocknet"
)

// Chain ids used when talking to the node.
const (
	ChainIDMainnet uint32 = 0x00000001
	ChainIDTestnet uint32 = 0x80000000
)

// SupportedNetworks contains all supported network codes
var SupportedNetworks = map[NetworkCode]bool{
	NetworkMainnet: true,
	NetworkTestnet: true,
	NetworkMocknet: true,
}

// IsNetworkSupported checks if a network code is supported
func IsNetworkSupported(network string) bool {
	return SupportedNetworks[NetworkCode(network)]
}

// ChainID returns the chain id for a network. Mocknet shares the testnet id.
func (n NetworkCode) ChainID() uint32 {
	if n == NetworkMainnet {
		return ChainIDMainnet
	}
	return ChainIDTestnet
}
