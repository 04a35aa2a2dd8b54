package controller

// View says which panels and buttons the GUI renders. It is derived from the
// state only.
type View struct {
	// InstallWallet is the only thing shown while there is no wallet.
	InstallWallet bool
	ConnectPanel  bool
	Loading       bool
	AccountInfo   bool
	// DebugButton logs the sdk state.
	DebugButton bool

	UpdateBalancePanel  bool
	UpdateBalanceButton bool
	PrivacyKeyPanel     bool
	DepositButton       bool
	RegisterPanel       bool
	SpendingKeyPanel    bool

	// Busy is set while a step runs, buttons should be disabled.
	Busy bool
}

func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Loading: m.connecting,
		Busy:    m.busy,
	}

	if m.provider == nil {
		v.InstallWallet = true
		return v
	}
	connected := m.sdk != nil
	v.ConnectPanel = !connected
	v.AccountInfo = connected
	if !connected {
		return v
	}

	hasKey := m.keyPair != nil && m.keyOwner == m.ethAccount
	hasUser := m.user != nil
	hasSigner := m.spendingSigner != nil

	v.DebugButton = true
	v.UpdateBalancePanel = hasKey && !hasUser
	v.UpdateBalanceButton = hasKey
	v.PrivacyKeyPanel = !hasKey
	v.DepositButton = hasSigner && hasUser
	v.RegisterPanel = hasSigner && hasUser && !m.registered
	v.SpendingKeyPanel = !hasSigner && hasUser
	return v
}
