// Package txcodec builds the call payloads handed to the wallet host for
// fungible token transfers.
package txcodec

import (
	"encoding/json"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"moff.io/wallet-bridge/pkg/errors"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountOverflow = errors.New("amount overflows uint256")
)

// decimalAmount is plain decimal notation with an optional short exponent.
var decimalAmount = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]{1,3})?$`)

// TransferSelector is the 4-byte selector of transfer(address,uint256).
const TransferSelector = "a9059cbb"

const erc20TransferABI = `[{"type":"function","name":"transfer","stateMutability":"nonpayable",` +
	`"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],` +
	`"outputs":[{"name":"","type":"bool"}]}]`

var erc20 abi.ABI

// nolint:gochecknoinits
func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(err)
	}
	erc20 = parsed
}

// Call is one entry of a transaction batch.
type Call struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// IsAddress reports whether s is "0x" followed by exactly 40 hex digits.
func IsAddress(s string) bool {
	return len(s) == 2+2*common.AddressLength && strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// ParseAmount parses a positive decimal amount in human units, e.g. "1.5" or "2e-3".
func ParseAmount(amount string) (*big.Rat, error) {
	amount = strings.TrimSpace(amount)
	if !decimalAmount.MatchString(amount) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", amount)
	}
	r, ok := new(big.Rat).SetString(amount)
	if !ok || r.Sign() <= 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", amount)
	}
	return r, nil
}

// ToBaseUnits returns round(amount * 10^decimals), rounding halves up.
func ToBaseUnits(amount *big.Rat, decimals uint8) (*uint256.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(amount, new(big.Rat).SetInt(scale))
	scaled.Add(scaled, big.NewRat(1, 2))
	units := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if units.Sign() == 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "%v rounds to zero base units", amount.FloatString(int(decimals)+1))
	}
	v, overflow := uint256.FromBig(units)
	if overflow {
		return nil, errors.Wrapf(ErrAmountOverflow, "%v base units", units)
	}
	return v, nil
}

// EncodeTokenTransfer builds the call moving amount (human units) of the token
// at tokenContract to recipient.
func EncodeTokenTransfer(tokenContract, recipient, amount string, decimals uint8) (Call, error) {
	if !IsAddress(recipient) {
		return Call{}, errors.Wrapf(ErrInvalidAddress, "recipient %q", recipient)
	}
	if !IsAddress(tokenContract) {
		return Call{}, errors.Wrapf(ErrInvalidAddress, "token contract %q", tokenContract)
	}
	parsed, err := ParseAmount(amount)
	if err != nil {
		return Call{}, err
	}
	units, err := ToBaseUnits(parsed, decimals)
	if err != nil {
		return Call{}, err
	}
	data, err := erc20.Pack("transfer", common.HexToAddress(recipient), units.ToBig())
	if err != nil {
		return Call{}, errors.Wrap(err, "pack transfer call")
	}
	return Call{To: tokenContract, Data: hexutil.Encode(data)}, nil
}

// EncodeTransferBatch repeats the same transfer n times.
func EncodeTransferBatch(tokenContract, recipient, amount string, decimals uint8, n int) ([]Call, error) {
	if n < 1 {
		return nil, errors.Errorf("batch size must be positive, got %d", n)
	}
	call, err := EncodeTokenTransfer(tokenContract, recipient, amount, decimals)
	if err != nil {
		return nil, err
	}
	calls := make([]Call, n)
	for i := range calls {
		calls[i] = call
	}
	return calls, nil
}

// MarshalCalls renders calls as the JSON array the host expects.
func MarshalCalls(calls []Call) (string, error) {
	if calls == nil {
		calls = []Call{}
	}
	b, err := json.Marshal(calls)
	if err != nil {
		return "", errors.Wrap(err, "marshal calls")
	}
	return string(b), nil
}
