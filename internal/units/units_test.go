package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEther(t *testing.T) {
	v, err := ParseEther("0.01")
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000", v.String())

	v, err = ParseEther("1")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())

	_, err = ParseEther("0.0000000000000000001")
	assert.Error(t, err)

	_, err = ParseEther("-1")
	assert.Error(t, err)

	_, err = ParseEther("abc")
	assert.Error(t, err)
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "0", FromBaseUnits(nil, EtherDecimals))
	assert.Equal(t, "0", FromBaseUnits(big.NewInt(0), EtherDecimals))
	assert.Equal(t, "0.01", FromBaseUnits(big.NewInt(10_000_000_000_000_000), EtherDecimals))
	assert.Equal(t, "1.5", FromBaseUnits(big.NewInt(15), 1))
}

func TestFromBaseUnitsFixed(t *testing.T) {
	v := big.NewInt(12_345_678_900_000_000)
	assert.Equal(t, "0.0123", FromBaseUnitsFixed(v, EtherDecimals, 4))
	assert.Equal(t, "0.00", FromBaseUnitsFixed(nil, EtherDecimals, 2))
}
