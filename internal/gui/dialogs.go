package gui

import (
	"context"
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/setavenger/zkwizard/internal/wallet"
)

// DialogApprover implements wallet.Approver with modal dialogs on the main
// window. Both calls block until the user answers, so they must not run on
// the UI goroutine.
type DialogApprover struct {
	window fyne.Window
}

func NewDialogApprover(window fyne.Window) *DialogApprover {
	return &DialogApprover{window: window}
}

// ApproveConnect asks for the keystore password.
func (a *DialogApprover) ApproveConnect(ctx context.Context, address wallet.EthAddress) ([]byte, error) {
	passwordEntry := widget.NewPasswordEntry()
	passwordEntry.SetPlaceHolder("Wallet password")

	items := []*widget.FormItem{
		widget.NewFormItem("Account", widget.NewLabel(address.Hex())),
		widget.NewFormItem("Password", passwordEntry),
	}

	result := make(chan []byte, 1)
	d := dialog.NewForm("Connect Wallet", "Connect", "Reject", items, func(ok bool) {
		if !ok {
			result <- nil
			return
		}
		result <- []byte(passwordEntry.Text)
	}, a.window)
	d.Resize(fyne.NewSize(520, 200))
	d.Show()

	select {
	case <-ctx.Done():
		d.Hide()
		return nil, ctx.Err()
	case password := <-result:
		if password == nil {
			return nil, wallet.ErrUserRejected
		}
		return password, nil
	}
}

// ApproveSignature shows the message the wallet is about to sign.
func (a *DialogApprover) ApproveSignature(ctx context.Context, address wallet.EthAddress, message string) error {
	messageLabel := widget.NewLabel(strings.ToValidUTF8(message, "?"))
	messageLabel.Wrapping = fyne.TextWrapWord
	messageLabel.TextStyle.Monospace = true

	content := widget.NewForm(
		widget.NewFormItem("Account", widget.NewLabel(address.Hex())),
		widget.NewFormItem("Message", messageLabel),
	)

	result := make(chan bool, 1)
	d := dialog.NewCustomConfirm("Signature Request", "Sign", "Reject", content, func(ok bool) {
		result <- ok
	}, a.window)
	d.Resize(fyne.NewSize(560, 320))
	d.Show()

	select {
	case <-ctx.Done():
		d.Hide()
		return ctx.Err()
	case ok := <-result:
		if !ok {
			return fmt.Errorf("%w: signature", wallet.ErrUserRejected)
		}
		return nil
	}
}
