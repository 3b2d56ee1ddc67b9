package oracle

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const oracleABIJSON = `[
  {
    "inputs": [{"internalType": "uint256", "name": "_price", "type": "uint256"}],
    "name": "updatePrice",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	oracleABI     abi.ABI
	oracleABIOnce sync.Once
	oracleABIErr  error
)

// OracleABI returns the parsed oracle contract ABI.
func OracleABI() (abi.ABI, error) {
	oracleABIOnce.Do(func() {
		oracleABI, oracleABIErr = abi.JSON(strings.NewReader(oracleABIJSON))
	})
	return oracleABI, oracleABIErr
}
