package gui

import (
	"errors"
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/setavenger/zkwizard/internal/logging"
	"github.com/setavenger/zkwizard/internal/wallet"
)

const minPasswordLength = 8

// SetupWizard creates or imports the local wallet, the stand-in for
// installing a browser wallet extension.
type SetupWizard struct {
	window       fyne.Window
	keystorePath string
	approver     wallet.Approver
	onFinish     func(wallet.Provider)
	onCancel     func()
}

func NewSetupWizard(
	window fyne.Window,
	keystorePath string,
	approver wallet.Approver,
	onFinish func(wallet.Provider),
	onCancel func(),
) *SetupWizard {
	return &SetupWizard{
		window:       window,
		keystorePath: keystorePath,
		approver:     approver,
		onFinish:     onFinish,
		onCancel:     onCancel,
	}
}

// createInstallWalletScreen is all that is shown while no wallet exists.
func (g *MainGUI) createInstallWalletScreen() fyne.CanvasObject {
	title := widget.NewLabel("Please install a wallet")
	title.TextStyle = fyne.TextStyle{Bold: true}
	title.Alignment = fyne.TextAlignCenter

	description := widget.NewLabel("zkwizard needs a wallet to sign with. Create a new one or import a seed phrase.")
	description.Alignment = fyne.TextAlignCenter
	description.Wrapping = fyne.TextWrapWord

	restore := func() { g.window.SetContent(g.content) }
	wizard := NewSetupWizard(g.window, g.cfg.KeystorePath(), NewDialogApprover(g.window),
		func(provider wallet.Provider) {
			restore()
			provider.OnAccountsChanged(func([]wallet.EthAddress) { g.manager.Reset() })
			g.manager.SetProvider(provider)
		},
		restore,
	)

	createButton := widget.NewButtonWithIcon("Create New Wallet", theme.ContentAddIcon(), wizard.showGenerateSeed)
	importButton := widget.NewButtonWithIcon("Import Wallet", theme.FolderOpenIcon(), wizard.showImport)

	return container.NewVBox(
		title,
		description,
		widget.NewSeparator(),
		container.NewCenter(container.NewHBox(createButton, importButton)),
	)
}

func (s *SetupWizard) showGenerateSeed() {
	mnemonic, err := wallet.NewMnemonic()
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to generate seed phrase: %v", err), s.window)
		return
	}

	seedEntry := widget.NewMultiLineEntry()
	seedEntry.SetText(mnemonic)
	seedEntry.Wrapping = fyne.TextWrapWord
	seedEntry.Disable() // read-only but still copyable

	warningLabel := widget.NewLabel("IMPORTANT: Write down this seed phrase and keep it safe! " +
		"It is the only way to recover the wallet.")
	warningLabel.TextStyle = fyne.TextStyle{Bold: true}
	warningLabel.Wrapping = fyne.TextWrapWord

	confirmBtn := widget.NewButton("I Have Written Down My Seed Phrase", func() {
		s.showMnemonicConfirmation(mnemonic)
	})
	backBtn := widget.NewButton("Back", s.onCancel)

	s.window.SetContent(container.NewVBox(
		headerLabel("Your New Seed Phrase"),
		seedEntry,
		warningLabel,
		widget.NewSeparator(),
		container.NewHBox(backBtn, confirmBtn),
	))
}

func (s *SetupWizard) showMnemonicConfirmation(mnemonic string) {
	mnemonicEntry := widget.NewMultiLineEntry()
	mnemonicEntry.SetPlaceHolder("Enter your seed phrase here to confirm...")
	mnemonicEntry.Wrapping = fyne.TextWrapWord

	passwordEntry, repeatEntry := widget.NewPasswordEntry(), widget.NewPasswordEntry()

	confirmBtn := widget.NewButton("Create Wallet", func() {
		if strings.Join(strings.Fields(mnemonicEntry.Text), " ") != mnemonic {
			dialog.ShowError(errors.New("seed phrase does not match, please try again"), s.window)
			return
		}
		password, err := checkPassword(passwordEntry.Text, repeatEntry.Text)
		if err != nil {
			dialog.ShowError(err, s.window)
			return
		}
		s.finish(wallet.CreateKeystore(s.keystorePath, mnemonic, password))
	})
	backBtn := widget.NewButton("Back", s.showGenerateSeed)

	s.window.SetContent(container.NewVBox(
		headerLabel("Confirm Your Seed Phrase"),
		mnemonicEntry,
		widget.NewForm(
			widget.NewFormItem("Password", passwordEntry),
			widget.NewFormItem("Repeat", repeatEntry),
		),
		widget.NewSeparator(),
		container.NewHBox(backBtn, confirmBtn),
	))
}

func (s *SetupWizard) showImport() {
	mnemonicEntry := widget.NewMultiLineEntry()
	mnemonicEntry.SetPlaceHolder("Enter your 12 or 24 word seed phrase...")
	mnemonicEntry.Wrapping = fyne.TextWrapWord

	passwordEntry, repeatEntry := widget.NewPasswordEntry(), widget.NewPasswordEntry()

	importBtn := widget.NewButton("Import Wallet", func() {
		password, err := checkPassword(passwordEntry.Text, repeatEntry.Text)
		if err != nil {
			dialog.ShowError(err, s.window)
			return
		}
		s.finish(wallet.ImportKeystore(s.keystorePath, mnemonicEntry.Text, password))
	})
	backBtn := widget.NewButton("Back", s.onCancel)

	s.window.SetContent(container.NewVBox(
		headerLabel("Import Existing Wallet"),
		mnemonicEntry,
		widget.NewForm(
			widget.NewFormItem("Password", passwordEntry),
			widget.NewFormItem("Repeat", repeatEntry),
		),
		widget.NewSeparator(),
		container.NewHBox(backBtn, importBtn),
	))
}

func (s *SetupWizard) finish(address wallet.EthAddress, err error) {
	if err != nil {
		logging.L.Err(err).Str("path", s.keystorePath).Msg("failed to write keystore")
		dialog.ShowError(fmt.Errorf("failed to save wallet: %v", err), s.window)
		return
	}

	provider, err := wallet.NewLocalProvider(s.keystorePath, s.approver)
	if err != nil {
		logging.L.Err(err).Str("path", s.keystorePath).Msg("failed to open wallet")
		dialog.ShowError(fmt.Errorf("failed to open wallet: %v", err), s.window)
		return
	}

	logging.L.Info().Str("account", address.Hex()).Msg("wallet created")
	s.onFinish(provider)
}

func checkPassword(password, repeat string) ([]byte, error) {
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must have at least %d characters", minPasswordLength)
	}
	if password != repeat {
		return nil, errors.New("passwords do not match")
	}
	return []byte(password), nil
}
