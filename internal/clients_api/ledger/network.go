package ledger

import (
	"fmt"
	"net/url"

	"holders-snapshot/internal/infra/apperr"
)

// Network is one of the two networks the snapshot can run against.
type Network struct {
	Name    string
	ChainID int64
	infura  string
}

var (
	// Mainnet - production network
	Mainnet = Network{Name: "mainnet", ChainID: 1, infura: "https://mainnet.infura.io/v3/"}
	// Testnet - the collection's test deployment lives on rinkeby
	Testnet = Network{Name: "rinkeby", ChainID: 4, infura: "https://rinkeby.infura.io/v3/"}
)

func ResolveNetwork(mainnet bool) Network {
	if mainnet {
		return Mainnet
	}
	return Testnet
}

// ProviderURL builds the Infura endpoint for a project id.
func (n Network) ProviderURL(projectID string) string {
	return n.infura + projectID
}

// Endpoint picks the node URL: rpcURL when given, the network's provider URL otherwise.
func Endpoint(n Network, rpcURL, projectID string) (string, error) {
	if rpcURL == "" {
		if projectID == "" {
			return "", apperr.Configf("node endpoint", "provider project id is empty")
		}
		return n.ProviderURL(projectID), nil
	}

	u, err := url.Parse(rpcURL)
	if err != nil {
		return "", apperr.Config("node endpoint", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return rpcURL, nil
	default:
		return "", apperr.Config("node endpoint", fmt.Errorf("unsupported scheme %q in %s", u.Scheme, rpcURL))
	}
}
