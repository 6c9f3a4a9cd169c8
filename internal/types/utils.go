package types

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	log "github.com/sirupsen/logrus"
)

var ethAmountPattern = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)

func PrivateKeyFromHex(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKeyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		log.Errorf("Failed to decode private key: %v", err)
		return nil, err
	}

	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		log.Errorf("Failed to parse private key: %v", err)
		return nil, err
	}
	return privateKey, nil
}

func PrivateKeyToGethAddress(privateKeyHex string) (common.Address, error) {
	privateKey, err := PrivateKeyFromHex(privateKeyHex)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(privateKey.PublicKey), nil
}

// FormatCountdown renders seconds as "Xd Yh Zm Ws", negative input is treated as zero.
func FormatCountdown(d time.Duration) string {
	s := int64(d / time.Second)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%dd %dh %dm %ds", s/86400, (s%86400)/3600, (s%3600)/60, s%60)
}

// PrettyWei formats wei as ether with at most 6 fractional digits, trailing zeros dropped.
func PrettyWei(wei *big.Int) string {
	if wei == nil || wei.Sign() <= 0 {
		return "0"
	}
	s := wei.String()
	if len(s) < 19 {
		s = strings.Repeat("0", 19-len(s)) + s
	}
	whole := strings.TrimLeft(s[:len(s)-18], "0")
	if whole == "" {
		whole = "0"
	}
	frac := strings.TrimRight(s[len(s)-18:], "0")
	if len(frac) > 6 {
		frac = strings.TrimRight(frac[:6], "0")
	}
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// ParseEther converts a decimal ether string into wei. Empty, "." and malformed input are
// rejected, as are more than 18 fractional digits.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || amount == "." || !ethAmountPattern.MatchString(amount) {
		return nil, fmt.Errorf("invalid ether amount %q", amount)
	}
	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > 18 {
		return nil, fmt.Errorf("invalid ether amount %q: too many decimals", amount)
	}
	if whole == "" {
		whole = "0"
	}
	wei, ok := new(big.Int).SetString(whole+frac+strings.Repeat("0", 18-len(frac)), 10)
	if !ok {
		return nil, fmt.Errorf("invalid ether amount %q", amount)
	}
	return wei, nil
}

// TokensForWei is the whole number of tokens a payment buys at a fixed wei price.
func TokensForWei(wei, weiPerToken *big.Int) *big.Int {
	if wei == nil || weiPerToken == nil || weiPerToken.Sign() <= 0 || wei.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Quo(wei, weiPerToken)
}

// Ether returns n ether in wei.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.Ether))
}
