package history

import (
	"strings"
	"sync"
	"time"
)

const defaultCapacity = 10

// Turn is one completed (question, answer) exchange.
type Turn struct {
	Question string
	Answer   string
	At       time.Time
}

type userState struct {
	turnMu sync.Mutex
	mu     sync.Mutex
	turns  []Turn
}

// Store holds bounded per-user conversation state.
//
// Each user's buffer keeps at most capacity turns; the oldest turn is
// evicted first. State lives only for the process lifetime.
type Store struct {
	capacity int

	mu    sync.Mutex
	users map[string]*userState
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	return &Store{
		capacity: capacity,
		users:    make(map[string]*userState),
	}
}

// Lock acquires the per-user turn lock and returns its release func.
//
// Holding it for a whole turn bounds in-flight turns per user to one, which
// also keeps that user's replies in receipt order. Turns for different users
// never contend.
func (s *Store) Lock(userID string) func() {
	state := s.stateFor(userID)
	state.turnMu.Lock()
	return state.turnMu.Unlock
}

// Append records one completed turn, evicting the oldest beyond capacity.
// Turns with an empty question and answer are ignored.
func (s *Store) Append(userID string, question string, answer string) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" && answer == "" {
		return
	}

	state := s.stateFor(userID)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.turns = append(state.turns, Turn{
		Question: question,
		Answer:   answer,
		At:       time.Now().UTC(),
	})
	if len(state.turns) > s.capacity {
		state.turns = state.turns[len(state.turns)-s.capacity:]
	}
}

// Turns returns a copy of the user's buffered turns, oldest first.
func (s *Store) Turns(userID string) []Turn {
	state := s.stateFor(userID)

	state.mu.Lock()
	defer state.mu.Unlock()

	if len(state.turns) == 0 {
		return nil
	}

	out := make([]Turn, len(state.turns))
	copy(out, state.turns)
	return out
}

// Clear drops all buffered turns for one user.
func (s *Store) Clear(userID string) {
	state := s.stateFor(userID)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.turns = nil
}

func (s *Store) stateFor(userID string) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.users[userID]
	if !ok {
		state = &userState{}
		s.users[userID] = state
	}
	return state
}
