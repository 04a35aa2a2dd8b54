package gui

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/setavenger/zkwizard/internal/controller"
)

// createStepPanels returns the step panels and buttons in page order.
func (g *MainGUI) createStepPanels(v controller.View) []fyne.CanvasObject {
	var objs []fyne.CanvasObject

	if v.DebugButton {
		debugBtn := widget.NewButtonWithIcon("[Debug] Log SDK", theme.InfoIcon(), g.manager.LogSDK)
		debugBtn.Importance = widget.LowImportance
		objs = append(objs, debugBtn)
	}

	if v.UpdateBalancePanel {
		objs = append(objs, newPanel("Update Account Balance",
			"Your privacy key pair is now generated. It decrypts the value notes the rollup holds for you, so "+
				"your balance can be read locally while staying encrypted for everyone else.",
			"Use the button below to look up your ETH balance on the rollup. The zkETH Balance row of the "+
				"account info is filled in once the account is synchronised. Without previous deposits it "+
				"shows a balance of 0.",
		))
	}
	if v.UpdateBalanceButton {
		objs = append(objs, g.stepButton("Update zkETH Balance", v.Busy, g.manager.SyncAndShowBalance))
	}
	if v.PrivacyKeyPanel {
		objs = append(objs, newPanel("Generate Privacy Key Pair",
			"With the wallet connected you can generate the privacy key pair that logs your account in on the rollup.",
			"The rollup signs with a twisted Edwards curve over BN254 instead of the ECDSA curve your wallet "+
				"uses, so the wallet key cannot be used directly. The rollup keys are derived from a message "+
				"your wallet signs. As long as you control the wallet you can derive them again.",
			"Each key pair is derived from a different message. The Privacy Public Key and Privacy Private Key "+
				"rows of the account info are filled in once your wallet signed.",
		), g.stepButton("Generate Privacy Keys", v.Busy, g.manager.Login))
	}
	if v.DepositButton {
		objs = append(objs, g.stepButton(fmt.Sprintf("Deposit %s ETH", g.cfg.DepositETH), v.Busy, g.manager.DepositEth))
	}
	if v.RegisterPanel {
		objs = append(objs, newPanel("Register Account",
			"So far every key was generated locally. Registering publishes them on the rollup so you can use "+
				"the account.",
			fmt.Sprintf("Registration ties a readable alias of at most 20 lowercase letters and digits to "+
				"your privacy key and spending public key. The alias is %q, set in the config file.", g.cfg.Alias),
			fmt.Sprintf("The transaction carries a deposit of %s ETH, later spendable on the rollup, plus the "+
				"network fee for the registration. The instant fee is paid so the account shows up in a "+
				"rollup of its own right away.", g.cfg.DepositETH),
			"Your keys are ready, register the account with the button below.",
		), g.stepButton("Register Account", v.Busy, g.manager.RegisterAccount))
	}
	if v.SpendingKeyPanel {
		objs = append(objs, newPanel("Generate Spending Key Pair",
			"The spending key pair is derived like the privacy key pair, from a different signed message. It "+
				"spends your value notes.",
			"Keeping the key that decrypts notes apart from the key that spends them allows several spending "+
				"keys, for example one per device, without sharing the wallet behind them.",
			"Notes can only be spent by the spending key they were created for. One spending key pair is "+
				"enough for this walkthrough.",
			"The Spending Public Key and Spending Private Key rows of the account info are filled in once "+
				"your wallet signed.",
		), g.stepButton("Generate Spending Keys", v.Busy, g.manager.DeriveSpendingKey))
	}
	return objs
}

func (g *MainGUI) createConnectPanel(v controller.View) fyne.CanvasObject {
	panel := newPanel("Connect Wallet",
		"Welcome to zkwizard. This walkthrough connects your wallet, derives your rollup keys, registers "+
			"an account and deposits ETH on a privacy rollup.",
		fmt.Sprintf("The wallet needs a little more than %s ETH on the rollup's layer 1. The local sandbox "+
			"funds new addresses on their first deposit. The rollup endpoint is %s.", g.cfg.DepositETH, g.cfg.ServerURL),
		"Connect your wallet with the button below.",
	)
	connectBtn := widget.NewButtonWithIcon("Connect", theme.LoginIcon(), func() {
		g.run("connect", g.manager.Connect)
	})
	connectBtn.Importance = widget.HighImportance
	if v.Loading || v.Busy {
		connectBtn.Disable()
	}
	return container.NewVBox(panel, connectBtn)
}

func (g *MainGUI) stepButton(label string, busy bool, fn func(context.Context) error) *widget.Button {
	btn := widget.NewButton(label, func() {
		g.run(label, fn)
	})
	if busy {
		btn.Disable()
	}
	return btn
}

// newPanel is a bold title followed by wrapped paragraphs.
func newPanel(title string, paragraphs ...string) *fyne.Container {
	titleLabel := widget.NewLabel(title)
	titleLabel.TextStyle = fyne.TextStyle{Bold: true}

	panel := container.NewVBox(widget.NewSeparator(), titleLabel)
	for _, p := range paragraphs {
		label := widget.NewLabel(p)
		label.Wrapping = fyne.TextWrapWord
		panel.Add(label)
	}
	return panel
}
