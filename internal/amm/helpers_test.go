package amm

import (
	"github.com/ethereum/go-ethereum/common"

	"portfolioSwap/internal/model"
)

func newKey(a, b common.Address) model.PoolKey {
	return model.NewPoolKey(a, b, 3000)
}
