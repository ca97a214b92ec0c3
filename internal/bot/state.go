package bot

import (
	"sync"
	"time"
)

// Registration steps
const (
	StepNone     = ""
	StepLanguage = "language"
	StepPhone    = "phone"
	StepFullName = "full_name"
)

// UserState is the registration progress of a Telegram user. Quiz progress is
// never kept here; it lives in the attempt.
type UserState struct {
	Step      string
	Timestamp time.Time
}

// StateManager keeps conversation state per Telegram user. States older than
// ttl are forgotten.
type StateManager struct {
	mu    sync.RWMutex
	users map[int64]*UserState
	ttl   time.Duration
}

func NewStateManager(ttl time.Duration) *StateManager {
	return &StateManager{
		users: make(map[int64]*UserState),
		ttl:   ttl,
	}
}

func (m *StateManager) Get(userID int64) UserState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.users[userID]
	if !ok || (m.ttl > 0 && time.Since(s.Timestamp) > m.ttl) {
		return UserState{}
	}
	return *s
}

func (m *StateManager) SetStep(userID int64, step string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = &UserState{Step: step, Timestamp: time.Now()}
}

func (m *StateManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
}
