package chain

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-errors/errors"
	"github.com/memecoin2016/meme-desk/internal/config"
)

// New an eth client
func DialEthClient() (*ethclient.Client, error) {
	var opts []rpc.ClientOption

	if config.AppConfig.EthJwtSecret != "" {
		jwtSecret := common.FromHex(strings.TrimSpace(config.AppConfig.EthJwtSecret))
		if len(jwtSecret) != 32 {
			return nil, errors.New("jwt secret is not a 32 bytes hex string")
		}
		var jwtKey [32]byte
		copy(jwtKey[:], jwtSecret)
		opts = append(opts, rpc.WithHTTPAuth(node.NewJWTAuth(jwtKey)))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	// Dial the node with optional JWT authentication
	client, err := rpc.DialOptions(ctx, config.AppConfig.EthRPC, opts...)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return ethclient.NewClient(client), nil
}
