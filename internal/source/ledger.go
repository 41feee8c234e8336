package source

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"rate-index-oracle/internal/oracle"
)

const accumulatorABIJSON = `[
{"inputs":[],"name":"rate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"index","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"lastUpdate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var accumulatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(accumulatorABIJSON))
	if err != nil {
		panic("failed to parse accumulator ABI: " + err.Error())
	}
	accumulatorABI = parsed
}

// Options parameterise the on-chain ledger reader.
type Options struct {
	RPCURL          string
	ContractAddress string
	Timeout         time.Duration
}

// Ledger reads the authoritative accumulator contract over Ethereum RPC.
type Ledger struct {
	opts      Options
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewLedger builds a ledger reader. The RPC connection is dialled lazily on
// first use.
func NewLedger(opts Options, logger zerolog.Logger) *Ledger {
	return &Ledger{opts: opts, logger: logger.With().Str("component", "source_ledger").Logger()}
}

// Rate reads the per-second accumulation factor.
func (l *Ledger) Rate(ctx context.Context) (uint256.Int, error) {
	return l.callUint256(ctx, "rate")
}

// Index reads the accumulated conversion factor at the last drip.
func (l *Ledger) Index(ctx context.Context) (uint256.Int, error) {
	return l.callUint256(ctx, "index")
}

// LastUpdate reads the timestamp of the last accumulator update.
func (l *Ledger) LastUpdate(ctx context.Context) (uint64, error) {
	out, err := l.callUint256(ctx, "lastUpdate")
	if err != nil {
		return 0, err
	}
	if out.BitLen() > 64 {
		return 0, errors.New("lastUpdate does not fit uint64")
	}
	return out.Uint64(), nil
}

func (l *Ledger) callUint256(ctx context.Context, method string) (uint256.Int, error) {
	if l.opts.RPCURL == "" {
		return uint256.Int{}, errors.New("ethereum rpc url not configured")
	}
	if l.opts.ContractAddress == "" {
		return uint256.Int{}, errors.New("accumulator contract address not configured")
	}

	timeout := l.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := l.getClient(ctx)
	if err != nil {
		return uint256.Int{}, err
	}

	addr := common.HexToAddress(l.opts.ContractAddress)

	payload, err := accumulatorABI.Pack(method)
	if err != nil {
		return uint256.Int{}, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("call %s: %w", method, err)
	}

	outputs, err := accumulatorABI.Unpack(method, res)
	if err != nil {
		return uint256.Int{}, err
	}
	if len(outputs) != 1 {
		return uint256.Int{}, fmt.Errorf("unexpected %s response", method)
	}

	raw, ok := outputs[0].(*big.Int)
	if !ok {
		return uint256.Int{}, fmt.Errorf("failed to decode %s output", method)
	}

	out, overflow := uint256.FromBig(raw)
	if overflow {
		return uint256.Int{}, fmt.Errorf("%s does not fit uint256", method)
	}
	return *out, nil
}

func (l *Ledger) getClient(ctx context.Context) (*ethclient.Client, error) {
	l.clientMux.Lock()
	defer l.clientMux.Unlock()

	if l.client != nil {
		return l.client, nil
	}

	client, err := ethclient.DialContext(ctx, l.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	l.client = client
	return client, nil
}

var _ oracle.SourceReader = (*Ledger)(nil)
