package abis

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	log "github.com/sirupsen/logrus"
)

const (
	AirdropContractABI     = `[{"type":"function","name":"rounds","stateMutability":"view","inputs":[{"name":"roundId","type":"uint256"}],"outputs":[{"name":"regEnds","type":"uint64"},{"name":"merkleRoot","type":"bytes32"},{"name":"pool","type":"uint256"},{"name":"sharePerWallet","type":"uint256"},{"name":"registrantCount","type":"uint64"},{"name":"closed","type":"bool"}]},{"type":"function","name":"roundsCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},{"type":"function","name":"registered","stateMutability":"view","inputs":[{"name":"roundId","type":"uint256"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"claimed","stateMutability":"view","inputs":[{"name":"roundId","type":"uint256"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"register","stateMutability":"nonpayable","inputs":[{"name":"roundId","type":"uint256"},{"name":"proof","type":"bytes32[]"}],"outputs":[]},{"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[{"name":"roundId","type":"uint256"}],"outputs":[]}]`
	FaucetContractABI      = `[{"type":"function","name":"faucetOpen","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"limitPerWallet","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},{"type":"function","name":"hasClaimed","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"availableBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},{"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[],"outputs":[]}]`
	PrivateSaleContractABI = `[{"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"saleOpensAt","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},{"type":"function","name":"tokensSold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},{"type":"function","name":"hasPurchased","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"delegateUsed","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"buy","stateMutability":"payable","inputs":[{"name":"beneficiary","type":"address"},{"name":"proof","type":"bytes32[]"}],"outputs":[]}]`
	PublicSaleContractABI  = `[{"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"saleOpensAt","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},{"type":"function","name":"tokensSold","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},{"type":"function","name":"hasPurchased","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"buy","stateMutability":"payable","inputs":[],"outputs":[]}]`
	ClaimV2ContractABI     = `[{"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"claimOpensAt","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},{"type":"function","name":"claimed","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"delegateUsed","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[{"name":"beneficiary","type":"address"},{"name":"proof","type":"bytes32[]"}],"outputs":[]}]`
	ArtDropContractABI     = `[{"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},{"type":"function","name":"sale","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"priceWei","type":"uint64"},{"name":"startTime","type":"uint64"},{"name":"maxPerTx","type":"uint8"},{"name":"artist","type":"address"}]},{"type":"function","name":"unitPriceFor","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},{"type":"function","name":"buyTo","stateMutability":"payable","inputs":[{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"recipient","type":"address"}],"outputs":[]}]`
	ERC1155ContractABI     = `[{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}]`
	ERC20ContractABI       = `[{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`
)

var (
	AirdropABI     = mustParse("airdrop", AirdropContractABI)
	FaucetABI      = mustParse("faucet", FaucetContractABI)
	PrivateSaleABI = mustParse("private sale", PrivateSaleContractABI)
	PublicSaleABI  = mustParse("public sale", PublicSaleContractABI)
	ClaimV2ABI     = mustParse("claim v2", ClaimV2ContractABI)
	ArtDropABI     = mustParse("art drop", ArtDropContractABI)
	ERC1155ABI     = mustParse("erc1155", ERC1155ContractABI)
	ERC20ABI       = mustParse("erc20", ERC20ContractABI)
)

func mustParse(name, raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		log.Fatalf("Failed to parse %s abi: %v", name, err)
	}
	return &parsed
}
