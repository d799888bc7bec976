package lookup

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-anomaly-repair/internal/model"
	"price-anomaly-repair/internal/repair"
)

const aggregatorABIJSON = `[{"inputs":[],"name":"latestAnswer","outputs":[{"internalType":"int256","name":"","type":"int256"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// OnchainOptions parameterise the on-chain rate lookup.
type OnchainOptions struct {
	RPCURL string
	// Aggregators maps an item identifier (e.g. "EUR/USD") to the address of
	// a price-feed aggregator contract exposing latestAnswer/decimals.
	Aggregators map[string]string
	Timeout     time.Duration
}

// Onchain resolves corrected exchange-rate values from price-feed aggregator
// contracts via Ethereum RPC. Items without a configured aggregator are an
// ordinary not-found, not an error.
type Onchain struct {
	opts      OnchainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnchain builds the on-chain lookup.
func NewOnchain(opts OnchainOptions, logger zerolog.Logger) *Onchain {
	return &Onchain{opts: opts, logger: logger.With().Str("component", "onchain_lookup").Logger()}
}

// LookupPrices reads the aggregator configured for the record's item and
// returns it under the conventional "price" field.
func (o *Onchain) LookupPrices(ctx context.Context, rec model.Record, issue model.Issue) (map[string]decimal.Decimal, error) {
	if o.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}

	addrHex, ok := o.opts.Aggregators[rec.Item]
	if !ok {
		return nil, repair.ErrNotFound
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(addrHex)

	answer, err := o.callInt(ctx, client, addr, "latestAnswer")
	if err != nil {
		return nil, err
	}
	decimals, err := o.callInt(ctx, client, addr, "decimals")
	if err != nil {
		return nil, err
	}

	value := decimal.NewFromBigInt(answer, -int32(decimals.Int64()))
	if value.Sign() <= 0 {
		return nil, repair.ErrNotFound
	}

	o.logger.Debug().Str("item", rec.Item).Str("value", value.String()).Msg("on-chain rate fetched")
	return map[string]decimal.Decimal{model.FieldPrice: value}, nil
}

func (o *Onchain) callInt(ctx context.Context, client *ethclient.Client, addr common.Address, method string) (*big.Int, error) {
	payload, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	outputs, err := aggregatorABI.Unpack(method, res)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, errors.New("unexpected aggregator response")
	}

	switch v := outputs[0].(type) {
	case *big.Int:
		return v, nil
	case uint8:
		return big.NewInt(int64(v)), nil
	default:
		return nil, errors.New("failed to decode aggregator output")
	}
}

func (o *Onchain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ repair.Lookup = (*Onchain)(nil)
