package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// RPCBalanceReader reads on-chain balances from an ordered list of
// interchangeable public endpoints. Первый успешный ответ выигрывает,
// каждый запрос ограничен своим таймаутом.
type RPCBalanceReader struct {
	endpoints []string
	timeout   time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

func NewRPCBalanceReader(endpoints []string, timeout time.Duration, log *zap.Logger) *RPCBalanceReader {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RPCBalanceReader{
		endpoints: endpoints,
		timeout:   timeout,
		log:       log,
		clients:   make(map[string]*ethclient.Client),
	}
}

// BalanceOf returns the address balance in wei as a decimal string.
func (r *RPCBalanceReader) BalanceOf(ctx context.Context, address string) (string, error) {
	if len(r.endpoints) == 0 {
		return "", errors.New("no rpc endpoints configured")
	}
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}

	addr := common.HexToAddress(address)
	var errs []error
	for _, endpoint := range r.endpoints {
		balance, err := r.readOne(ctx, endpoint, addr)
		if err == nil {
			return balance.String(), nil
		}
		r.log.Warn("rpc balance read failed",
			zap.String("endpoint", endpoint), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}

func (r *RPCBalanceReader) readOne(ctx context.Context, endpoint string, addr common.Address) (*big.Int, error) {
	client, err := r.client(endpoint)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// nil block = latest
	return client.BalanceAt(callCtx, addr, nil)
}

func (r *RPCBalanceReader) client(endpoint string) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[endpoint]; ok {
		return c, nil
	}
	c, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	r.clients[endpoint] = c
	return c, nil
}
