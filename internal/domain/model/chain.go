package model

type Network string

const (
	NetworkMainnet  Network = "main"
	NetworkTestnet3 Network = "test"
	NetworkTestnet4 Network = "testnet4"
	NetworkSignet   Network = "signet"
	NetworkRegtest  Network = "regtest"
)

func (n Network) String() string {
	return string(n)
}

// DisplayName returns the label used in report headers.
func (n Network) DisplayName() string {
	switch n {
	case NetworkMainnet:
		return "Mainnet"
	case NetworkTestnet3:
		return "Testnet3"
	case NetworkTestnet4, "":
		return "Testnet4"
	case NetworkSignet:
		return "Signet"
	case NetworkRegtest:
		return "Regtest"
	default:
		return string(n)
	}
}
