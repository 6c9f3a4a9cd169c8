package types

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCountdown(t *testing.T) {
	testCases := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0d 0h 0m 0s"},
		{"one second", time.Second, "0d 0h 0m 1s"},
		{"negative clamps", -5 * time.Second, "0d 0h 0m 0s"},
		{"mixed", 26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
		{"sub second truncates", 1500 * time.Millisecond, "0d 0h 0m 1s"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatCountdown(tc.duration))
		})
	}
}

func TestPrettyWei(t *testing.T) {
	assert.Equal(t, "0", PrettyWei(nil))
	assert.Equal(t, "0", PrettyWei(big.NewInt(0)))
	assert.Equal(t, "1", PrettyWei(Ether(1)))
	assert.Equal(t, "0.01", PrettyWei(big.NewInt(10_000_000_000_000_000)))
	assert.Equal(t, "0.000001", PrettyWei(big.NewInt(1_000_000_000_000)))
	// below 6 decimals is cut off
	assert.Equal(t, "0", PrettyWei(big.NewInt(1)))

	v, ok := new(big.Int).SetString("12345678900000000000", 10)
	require.True(t, ok)
	assert.Equal(t, "12.345678", PrettyWei(v))
}

func TestParseEther(t *testing.T) {
	wei, err := ParseEther("0.1")
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", wei.String())

	wei, err = ParseEther(".05")
	require.NoError(t, err)
	assert.Equal(t, "50000000000000000", wei.String())

	wei, err = ParseEther("2")
	require.NoError(t, err)
	assert.Equal(t, 0, wei.Cmp(Ether(2)))

	for _, bad := range []string{"", ".", "abc", "1.2.3", "-1", "0.1234567890123456789"} {
		_, err := ParseEther(bad)
		assert.Error(t, err, bad)
	}
}

func TestTokensForWei(t *testing.T) {
	weiPerToken := big.NewInt(28968713789107)
	wei, err := ParseEther("0.1")
	require.NoError(t, err)
	assert.Equal(t, "3452", TokensForWei(wei, weiPerToken).String())
	assert.Equal(t, "0", TokensForWei(big.NewInt(0), weiPerToken).String())
	assert.Equal(t, "0", TokensForWei(wei, nil).String())
}

func TestPrivateKeyToGethAddress(t *testing.T) {
	// well-known hardhat account #0
	addr, err := PrivateKeyToGethAddress("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", addr.Hex())

	_, err = PrivateKeyToGethAddress("zz")
	assert.Error(t, err)
}
