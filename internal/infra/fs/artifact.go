package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"holders-snapshot/internal/infra/apperr"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Artifact is the part of a compiled contract description (truffle/hardhat build JSON) the snapshot needs.
type Artifact struct {
	ContractName string
	ABI          abi.ABI
	Networks     map[string]ArtifactNetwork
}

// ArtifactNetwork is one deployment entry, keyed by chain id in the artifact.
type ArtifactNetwork struct {
	Address string `json:"address"`
}

type artifactFile struct {
	ContractName string                     `json:"contractName"`
	ABI          json.RawMessage            `json:"abi"`
	Networks     map[string]ArtifactNetwork `json:"networks"`
}

// LoadContractArtifact reads a compiled contract JSON. A file holding only the ABI array is accepted too.
// Every failure is a configuration error.
func LoadContractArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Config("read contract artifact", err)
	}

	var file artifactFile
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		file.ABI = trimmed
	} else if err := json.Unmarshal(data, &file); err != nil {
		return nil, apperr.Config("parse contract artifact", fmt.Errorf("%s: %w", path, err))
	}

	if len(file.ABI) == 0 || string(file.ABI) == "null" {
		return nil, apperr.Configf("parse contract artifact", "%s has no abi field", path)
	}

	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, apperr.Config("parse contract abi", fmt.Errorf("%s: %w", path, err))
	}

	return &Artifact{
		ContractName: file.ContractName,
		ABI:          parsed,
		Networks:     file.Networks,
	}, nil
}

// AddressFor returns the address the artifact records for a chain id.
func (a *Artifact) AddressFor(chainID int64) (common.Address, error) {
	entry, ok := a.Networks[strconv.FormatInt(chainID, 10)]
	if !ok || entry.Address == "" {
		return common.Address{}, apperr.Configf("resolve contract address", "artifact has no deployment for chain %d", chainID)
	}
	if !common.IsHexAddress(entry.Address) {
		return common.Address{}, apperr.Configf("resolve contract address", "artifact address %q for chain %d is invalid", entry.Address, chainID)
	}
	return common.HexToAddress(entry.Address), nil
}

// Name returns the contract name, or fallback when the artifact has none.
func (a *Artifact) Name(fallback string) string {
	if a.ContractName != "" {
		return a.ContractName
	}
	return fallback
}
