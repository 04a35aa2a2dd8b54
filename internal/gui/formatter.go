package gui

import (
	"math/big"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/setavenger/zkwizard/internal/units"
)

// FormatNumber formats a number with thousand separators (commas) using golang.org/x/text
func FormatNumber(n int64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%d", n)
}

// FormatWei formats a wei amount as ether with a unit suffix
func FormatWei(amount *big.Int) string {
	if amount == nil {
		return "0 ETH"
	}
	return units.FromBaseUnits(amount, units.EtherDecimals) + " ETH"
}

// FormatRollupID formats the rollup a transaction settled in
func FormatRollupID(id int64, settled bool) string {
	if !settled || id < 0 {
		return "pending"
	}
	return "#" + FormatNumber(id)
}

func FormatTime(t time.Time) string {
	return t.Local().Format("15:04:05")
}

// ShortHex shortens long hex strings to their first 8 and last 6 characters
func ShortHex(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:8] + "..." + s[len(s)-6:]
}
