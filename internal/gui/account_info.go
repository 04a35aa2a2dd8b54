package gui

import (
	"bytes"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"github.com/skip2/go-qrcode"

	"github.com/setavenger/zkwizard/internal/controller"
)

// missingValue is shown for keys and balances that do not exist yet.
const missingValue = "undefined"

func (g *MainGUI) createAccountInfo(info controller.AccountInfo) fyne.CanvasObject {
	titleLabel := widget.NewLabel("Account Info")
	titleLabel.TextStyle.Bold = true

	table := container.New(layout.NewFormLayout(),
		headerLabel("Property"), headerLabel("Value"),
	)
	addRow := func(name, value string) {
		table.Add(widget.NewLabel(name))
		table.Add(valueLabel(value))
	}
	addRow("Ethereum Address", info.EthAddress)
	addRow("zkETH Balance", info.Balance)
	addRow("[Public] Privacy Key", info.PrivacyPublicKey)
	addRow("[Private] Privacy Key", info.PrivacyPrivateKey)
	addRow("[Public] Spending Key", info.SpendingPublicKey)
	addRow("[Private] Spending Key", info.SpendingPrivateKey)
	if info.Registered {
		addRow("Registered", "yes")
	}

	// Notification label for copy feedback
	notificationLabel := widget.NewLabel("")
	notificationLabel.Alignment = fyne.TextAlignCenter
	notificationLabel.Hide()

	copyBtn := widget.NewButton("Copy Address", func() {
		g.copyToClipboard(info.EthAddress, notificationLabel)
	})

	return container.NewVBox(
		titleLabel,
		container.NewBorder(nil, nil, nil, g.generateQRCode(info.EthAddress), table),
		container.NewHBox(copyBtn, notificationLabel),
	)
}

func headerLabel(text string) *widget.Label {
	label := widget.NewLabel(text)
	label.TextStyle.Bold = true
	return label
}

func valueLabel(value string) *widget.Label {
	if value == "" {
		value = missingValue
	}
	label := widget.NewLabel(value)
	label.TextStyle.Monospace = true
	label.Wrapping = fyne.TextWrapBreak
	return label
}

func (g *MainGUI) copyToClipboard(text string, notificationLabel *widget.Label) {
	g.window.Clipboard().SetContent(text)

	notificationLabel.SetText("Copied to clipboard!")
	notificationLabel.Show()

	go func() {
		time.Sleep(2 * time.Second)
		notificationLabel.SetText("")
		notificationLabel.Hide()
	}()
}

// generateQRCode renders the connected address so a phone wallet can scan it.
func (g *MainGUI) generateQRCode(address string) fyne.CanvasObject {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return widget.NewLabel("Failed to generate QR code")
	}

	var buf bytes.Buffer
	if err = qr.Write(128, &buf); err != nil {
		return widget.NewLabel("Failed to encode QR code")
	}

	imageCanvas := canvas.NewImageFromResource(fyne.NewStaticResource("address.png", buf.Bytes()))
	imageCanvas.FillMode = canvas.ImageFillOriginal
	imageCanvas.SetMinSize(fyne.NewSize(128, 128))
	return imageCanvas
}
