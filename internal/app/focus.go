package app

import "sync"

// focusState tracks window focus and the open conversation for the
// side-effect dispatcher. The dispatcher reads it from engine
// goroutines while the Bubble Tea loop writes it, hence the lock.
type focusState struct {
	mu        sync.Mutex
	focused   bool
	viewing   int
	viewingOK bool
}

func newFocusState() *focusState {
	// Assume focus at startup; the first BlurMsg corrects it.
	return &focusState{focused: true}
}

// Focused reports whether the terminal window has focus.
func (f *focusState) Focused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focused
}

// Viewing returns the conversation the user has open, if any.
func (f *focusState) Viewing() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewing, f.viewingOK
}

func (f *focusState) setFocused(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = v
}

func (f *focusState) setViewing(chatID int, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewing = chatID
	f.viewingOK = ok
}
