package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const multicallABIJSON = `[
  {"type":"function","name":"getMiner","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"state","type":"tuple","components":[
     {"name":"epochId","type":"uint16"},
     {"name":"initPrice","type":"uint192"},
     {"name":"startTime","type":"uint40"},
     {"name":"glazed","type":"uint256"},
     {"name":"price","type":"uint256"},
     {"name":"dps","type":"uint256"},
     {"name":"nextDps","type":"uint256"},
     {"name":"donutPrice","type":"uint256"},
     {"name":"miner","type":"address"},
     {"name":"uri","type":"string"},
     {"name":"ethBalance","type":"uint256"},
     {"name":"wethBalance","type":"uint256"},
     {"name":"donutBalance","type":"uint256"}]}]},
  {"type":"function","name":"mine","stateMutability":"payable",
   "inputs":[
     {"name":"provider","type":"address"},
     {"name":"epochId","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"maxPrice","type":"uint256"},
     {"name":"uri","type":"string"}],
   "outputs":[]}
]`

const minerABIJSON = `[
  {"type":"function","name":"startTime","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]}
]`

const pairABIJSON = `[
  {"type":"function","name":"getReserves","stateMutability":"view","inputs":[],
   "outputs":[
     {"name":"reserve0","type":"uint112"},
     {"name":"reserve1","type":"uint112"},
     {"name":"blockTimestampLast","type":"uint32"}]},
  {"type":"function","name":"token0","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"address"}]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

const routerABIJSON = `[
  {"type":"function","name":"swapExactETHForTokens","stateMutability":"payable",
   "inputs":[
     {"name":"amountOutMin","type":"uint256"},
     {"name":"path","type":"address[]"},
     {"name":"to","type":"address"},
     {"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"type":"function","name":"swapExactTokensForETH","stateMutability":"nonpayable",
   "inputs":[
     {"name":"amountIn","type":"uint256"},
     {"name":"amountOutMin","type":"uint256"},
     {"name":"path","type":"address[]"},
     {"name":"to","type":"address"},
     {"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

const launchpadABIJSON = `[
  {"type":"function","name":"getAuction","stateMutability":"view",
   "inputs":[{"name":"rig","type":"address"},{"name":"account","type":"address"}],
   "outputs":[{"name":"state","type":"tuple","components":[
     {"name":"epochId","type":"uint256"},
     {"name":"initPrice","type":"uint256"},
     {"name":"startTime","type":"uint256"},
     {"name":"paymentToken","type":"address"},
     {"name":"price","type":"uint256"},
     {"name":"paymentTokenPrice","type":"uint256"},
     {"name":"wethAccumulated","type":"uint256"},
     {"name":"wethBalance","type":"uint256"},
     {"name":"donutBalance","type":"uint256"},
     {"name":"paymentTokenBalance","type":"uint256"}]}]},
  {"type":"function","name":"buy","stateMutability":"nonpayable",
   "inputs":[
     {"name":"rigRegistry","type":"address"},
     {"name":"account","type":"address"},
     {"name":"epochId","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"maxPrice","type":"uint256"},
     {"name":"lpAmount","type":"uint256"}],
   "outputs":[]}
]`

const lsgABIJSON = `[
  {"type":"function","name":"getAllStrategiesData","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"data","type":"tuple[]","components":[
     {"name":"strategy","type":"address"},
     {"name":"bribe","type":"address"},
     {"name":"bribeRouter","type":"address"},
     {"name":"paymentToken","type":"address"},
     {"name":"paymentReceiver","type":"address"},
     {"name":"isAlive","type":"bool"},
     {"name":"paymentTokenDecimals","type":"uint8"},
     {"name":"strategyWeight","type":"uint256"},
     {"name":"votePercent","type":"uint256"},
     {"name":"claimable","type":"uint256"},
     {"name":"pendingRevenue","type":"uint256"},
     {"name":"routerRevenue","type":"uint256"},
     {"name":"totalPotentialRevenue","type":"uint256"},
     {"name":"epochPeriod","type":"uint256"},
     {"name":"priceMultiplier","type":"uint256"},
     {"name":"minInitPrice","type":"uint256"},
     {"name":"epochId","type":"uint256"},
     {"name":"initPrice","type":"uint256"},
     {"name":"startTime","type":"uint256"},
     {"name":"currentPrice","type":"uint256"},
     {"name":"revenueBalance","type":"uint256"},
     {"name":"accountVotes","type":"uint256"},
     {"name":"accountPaymentTokenBalance","type":"uint256"}]}]},
  {"type":"function","name":"distributeAndBuy","stateMutability":"nonpayable",
   "inputs":[
     {"name":"strategy","type":"address"},
     {"name":"epochId","type":"uint256"},
     {"name":"deadline","type":"uint256"},
     {"name":"maxPaymentAmount","type":"uint256"}],
   "outputs":[{"name":"paymentAmount","type":"uint256"}]}
]`

var (
	multicallABI = mustParse(multicallABIJSON)
	launchpadABI = mustParse(launchpadABIJSON)
	lsgABI       = mustParse(lsgABIJSON)
	minerABI     = mustParse(minerABIJSON)
	pairABI      = mustParse(pairABIJSON)
	erc20ABI     = mustParse(erc20ABIJSON)
	routerABI    = mustParse(routerABIJSON)
)

func mustParse(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

// minerTuple matches the multicall getMiner output struct.
type minerTuple struct {
	EpochId      uint16
	InitPrice    *big.Int
	StartTime    *big.Int
	Glazed       *big.Int
	Price        *big.Int
	Dps          *big.Int
	NextDps      *big.Int
	DonutPrice   *big.Int
	Miner        common.Address
	Uri          string
	EthBalance   *big.Int
	WethBalance  *big.Int
	DonutBalance *big.Int
}

// auctionTuple matches the launchpad getAuction output struct.
type auctionTuple struct {
	EpochId             *big.Int
	InitPrice           *big.Int
	StartTime           *big.Int
	PaymentToken        common.Address
	Price               *big.Int
	PaymentTokenPrice   *big.Int
	WethAccumulated     *big.Int
	WethBalance         *big.Int
	DonutBalance        *big.Int
	PaymentTokenBalance *big.Int
}

// strategyTuple matches one getAllStrategiesData element.
type strategyTuple struct {
	Strategy                   common.Address
	Bribe                      common.Address
	BribeRouter                common.Address
	PaymentToken               common.Address
	PaymentReceiver            common.Address
	IsAlive                    bool
	PaymentTokenDecimals       uint8
	StrategyWeight             *big.Int
	VotePercent                *big.Int
	Claimable                  *big.Int
	PendingRevenue             *big.Int
	RouterRevenue              *big.Int
	TotalPotentialRevenue      *big.Int
	EpochPeriod                *big.Int
	PriceMultiplier            *big.Int
	MinInitPrice               *big.Int
	EpochId                    *big.Int
	InitPrice                  *big.Int
	StartTime                  *big.Int
	CurrentPrice               *big.Int
	RevenueBalance             *big.Int
	AccountVotes               *big.Int
	AccountPaymentTokenBalance *big.Int
}
