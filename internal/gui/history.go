package gui

import (
	"net/url"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/setavenger/zkwizard/internal/controller"
)

// createHistory lists the transactions submitted in this session, newest
// first. The txid links to the configured explorer.
func (g *MainGUI) createHistory(history controller.TxHistory) fyne.CanvasObject {
	titleLabel := widget.NewLabel("Submitted Transactions")
	titleLabel.TextStyle.Bold = true

	rows := container.NewGridWithColumns(5,
		headerLabel("Kind"),
		headerLabel("TXID"),
		headerLabel("Amount"),
		headerLabel("Rollup"),
		headerLabel("Submitted"),
	)

	for i := len(history) - 1; i >= 0; i-- {
		tx := history[i]
		rows.Add(widget.NewLabel(string(tx.Kind)))
		rows.Add(txLink(tx))
		rows.Add(widget.NewLabel(FormatWei(tx.Amount)))
		rows.Add(widget.NewLabel(FormatRollupID(tx.RollupID, tx.Settled)))
		rows.Add(widget.NewLabel(FormatTime(tx.SubmittedAt)))
	}

	return container.NewVBox(titleLabel, rows)
}

func txLink(tx controller.TxHistoryItem) fyne.CanvasObject {
	short := ShortHex(tx.TxID.String())
	if tx.Explorer == "" {
		return widget.NewLabel(short)
	}
	link, err := url.Parse(tx.Explorer)
	if err != nil {
		return widget.NewLabel(short)
	}
	return widget.NewHyperlink(short, link)
}
