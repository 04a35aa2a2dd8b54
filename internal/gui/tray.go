package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"

	"github.com/setavenger/zkwizard/internal/controller"
)

// TrayManager handles system tray functionality
type TrayManager struct {
	app     fyne.App
	window  fyne.Window
	manager *controller.Manager
	visible bool
}

// NewTrayManager creates a new tray manager
func NewTrayManager(app fyne.App, window fyne.Window, manager *controller.Manager) *TrayManager {
	tm := &TrayManager{
		app:     app,
		window:  window,
		manager: manager,
		visible: true,
	}

	tm.setupTray()
	return tm
}

// setupTray installs the tray menu. Without desktop support closing the
// window quits as usual.
func (tm *TrayManager) setupTray() {
	desk, ok := tm.app.(desktop.App)
	if !ok {
		return
	}

	tm.window.SetCloseIntercept(tm.hideWindow)

	menu := fyne.NewMenu("zkwizard",
		fyne.NewMenuItem("Show/Hide", tm.toggleWindow),
		fyne.NewMenuItem("Restart Walkthrough", tm.manager.Reset),
		fyne.NewMenuItem("Log SDK", tm.manager.LogSDK),
	)
	// fyne appends its own Quit item
	desk.SetSystemTrayMenu(menu)
}

func (tm *TrayManager) toggleWindow() {
	if tm.visible {
		tm.hideWindow()
	} else {
		tm.showWindow()
	}
}

func (tm *TrayManager) showWindow() {
	tm.window.Show()
	tm.window.RequestFocus() // Bring window to front on macOS
	tm.visible = true
}

func (tm *TrayManager) hideWindow() {
	tm.window.Hide()
	tm.visible = false
}
