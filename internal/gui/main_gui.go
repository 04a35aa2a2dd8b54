package gui

import (
	"context"
	"errors"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/setavenger/zkwizard/internal/configs"
	"github.com/setavenger/zkwizard/internal/controller"
	"github.com/setavenger/zkwizard/internal/logging"
)

// MainGUI renders the wizard into the main window. The whole page is rebuilt
// from controller.View whenever the wizard state changes.
type MainGUI struct {
	app     fyne.App
	window  fyne.Window
	manager *controller.Manager
	cfg     *configs.Config

	content      *fyne.Container
	updateTicker *time.Ticker
	done         chan struct{}
}

// NewMainGUI creates a new main GUI instance
func NewMainGUI(app fyne.App, window fyne.Window, manager *controller.Manager, cfg *configs.Config) *MainGUI {
	g := &MainGUI{
		app:     app,
		window:  window,
		manager: manager,
		cfg:     cfg,
		content: container.NewStack(),
		done:    make(chan struct{}),
	}
	g.refresh()
	manager.OnChange(g.refresh)

	g.startPeriodicUpdates()
	return g
}

// GetContent returns the main content container
func (g *MainGUI) GetContent() *fyne.Container {
	return g.content
}

// Cleanup stops the background refresh.
func (g *MainGUI) Cleanup() {
	g.stopPeriodicUpdates()
}

// refresh swaps the page for one matching the current state.
func (g *MainGUI) refresh() {
	page := container.NewVScroll(g.createContent(g.manager.View()))
	g.content.Objects = []fyne.CanvasObject{page}
	g.content.Refresh()
}

func (g *MainGUI) createContent(v controller.View) *fyne.Container {
	page := container.NewVBox()

	if v.InstallWallet {
		page.Add(g.createInstallWalletScreen())
		return page
	}

	if v.AccountInfo {
		page.Add(g.createAccountInfo(g.manager.AccountInfo()))
	}
	if v.ConnectPanel {
		page.Add(g.createConnectPanel(v))
	}
	if v.Loading {
		page.Add(widget.NewProgressBarInfinite())
		page.Add(widget.NewLabel("Loading..."))
	}
	for _, obj := range g.createStepPanels(v) {
		page.Add(obj)
	}
	if history := g.manager.History(); len(history) > 0 {
		page.Add(widget.NewSeparator())
		page.Add(g.createHistory(history))
	}
	return page
}

// run executes a wizard step off the UI goroutine. Errors are already logged
// by the wizard and do not produce any dialog.
func (g *MainGUI) run(step string, fn func(context.Context) error) {
	go func() {
		err := fn(context.Background())
		switch {
		case err == nil:
			logging.L.Debug().Str("step", step).Msg("step finished")
		case errors.Is(err, controller.ErrBusy), errors.Is(err, controller.ErrReset):
			logging.L.Debug().Err(err).Str("step", step).Msg("step dropped")
		default:
			logging.L.Debug().Err(err).Str("step", step).Msg("step failed")
		}
	}()
}

// startPeriodicUpdates polls the settlement state of submitted transactions.
func (g *MainGUI) startPeriodicUpdates() {
	g.updateTicker = time.NewTicker(5 * time.Second)

	go func() {
		for {
			select {
			case <-g.done:
				return
			case <-g.updateTicker.C:
			}
			last := g.manager.History().Last()
			if last == nil || last.Settled {
				continue
			}
			err := g.manager.RefreshHistory(context.Background())
			if err != nil && !errors.Is(err, controller.ErrNotConnected) {
				logging.L.Debug().Err(err).Msg("history refresh failed")
			}
		}
	}()
}

func (g *MainGUI) stopPeriodicUpdates() {
	if g.updateTicker == nil {
		return
	}
	g.updateTicker.Stop()
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}
