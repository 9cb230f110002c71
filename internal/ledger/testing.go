package ledger

// SeedWallet is a test helper that sets a wallet balance directly when using
// the in-memory store.
func SeedWallet(s Store, userID string, balance int64) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if w, exists := mem.wallets[userID]; exists {
			w.Balance = balance
		}
	}
}

// HoldWallet is a test helper that occupies the in-memory wallet lock and
// returns a release function. Used to exercise ErrWalletBusy paths.
func HoldWallet(s Store, userID string) (release func()) {
	mem, ok := s.(*memoryStore)
	if !ok {
		return func() {}
	}
	mem.mu.Lock()
	lock, exists := mem.locks[userID]
	mem.mu.Unlock()
	if !exists {
		return func() {}
	}
	lock <- struct{}{}
	return func() { <-lock }
}
