package gui

import (
	"math/big"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setavenger/zkwizard/internal/configs"
	"github.com/setavenger/zkwizard/internal/controller"
	"github.com/setavenger/zkwizard/internal/wallet"
)

const testMnemonic = "test test test test test test test test test test test junk"

func testConfig(t *testing.T) *configs.Config {
	return &configs.Config{
		DataDir:         t.TempDir(),
		ServerURL:       configs.DefaultServerURL,
		PollInterval:    configs.DefaultPollInterval,
		MemoryDB:        true,
		MinConfirmation: configs.DefaultMinConfirmation,
		ExplorerURL:     configs.DefaultExplorerURL,
		Alias:           configs.DefaultAlias,
		DepositETH:      configs.DefaultDepositETH,
	}
}

func newTestGUI(t *testing.T, provider wallet.Provider) *MainGUI {
	cfg := testConfig(t)
	a := test.NewApp()
	t.Cleanup(a.Quit)

	g := NewMainGUI(a, a.NewWindow("zkwizard"), controller.NewManager(cfg, provider, nil), cfg)
	t.Cleanup(g.Cleanup)
	return g
}

// texts collects the label and button texts of a rendered page.
func texts(obj fyne.CanvasObject) []string {
	var out []string
	switch o := obj.(type) {
	case *widget.Label:
		out = append(out, o.Text)
	case *widget.Button:
		out = append(out, o.Text)
	case *container.Scroll:
		out = append(out, texts(o.Content)...)
	case *fyne.Container:
		for _, child := range o.Objects {
			out = append(out, texts(child)...)
		}
	}
	return out
}

func TestInstallWalletOnly(t *testing.T) {
	g := newTestGUI(t, nil)

	page := texts(g.GetContent())
	assert.Contains(t, page, "Please install a wallet")
	assert.Contains(t, page, "Create New Wallet")
	assert.NotContains(t, page, "Connect Wallet")
	assert.NotContains(t, page, "Account Info")
}

func TestConnectPanelWithWallet(t *testing.T) {
	provider, err := wallet.NewMnemonicProvider(testMnemonic, 0)
	require.NoError(t, err)

	g := newTestGUI(t, provider)

	page := texts(g.GetContent())
	assert.Contains(t, page, "Connect Wallet")
	assert.Contains(t, page, "Connect")
	assert.NotContains(t, page, "Please install a wallet")
	assert.NotContains(t, page, "Generate Privacy Keys")
}

func TestRefreshFollowsManager(t *testing.T) {
	provider, err := wallet.NewMnemonicProvider(testMnemonic, 0)
	require.NoError(t, err)

	g := newTestGUI(t, nil)
	require.Contains(t, texts(g.GetContent()), "Please install a wallet")

	g.manager.SetProvider(provider)
	assert.Contains(t, texts(g.GetContent()), "Connect Wallet")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "1,234,567", FormatNumber(1234567))
	assert.Equal(t, "pending", FormatRollupID(-1, false))
	assert.Equal(t, "pending", FormatRollupID(3, false))
	assert.Equal(t, "#1,024", FormatRollupID(1024, true))

	wei, ok := new(big.Int).SetString("10000000000000000", 10)
	require.True(t, ok)
	assert.Equal(t, "0.01 ETH", FormatWei(wei))
	assert.Equal(t, "0 ETH", FormatWei(nil))

	assert.Equal(t, "0xabcd", ShortHex("0xabcd"))
	assert.Equal(t, "01234567...abcdef", ShortHex("01234567890123456789abcdef"))

	ts := time.Date(2024, 1, 2, 13, 4, 5, 0, time.Local)
	assert.Equal(t, "13:04:05", FormatTime(ts))
}

func TestCheckPassword(t *testing.T) {
	_, err := checkPassword("short", "short")
	assert.Error(t, err)

	_, err = checkPassword("long enough", "different")
	assert.Error(t, err)

	password, err := checkPassword("long enough", "long enough")
	require.NoError(t, err)
	assert.Equal(t, []byte("long enough"), password)
}

func TestTrayToggleWindow(t *testing.T) {
	g := newTestGUI(t, nil)
	tm := NewTrayManager(g.app, g.window, g.manager)
	require.True(t, tm.visible)

	tm.toggleWindow()
	assert.False(t, tm.visible)

	tm.toggleWindow()
	assert.True(t, tm.visible)
}
