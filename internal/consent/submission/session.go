package submission

import (
	"fmt"
	"sync"
	"time"

	"privacy-consent/internal/models"
)

type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateInvalid     State = "invalid"
	StateResolvingIP State = "resolving_ip"
	StateRendering   State = "rendering"
	StateEncoding    State = "encoding"
	StateSending     State = "sending"
	StateSuccess     State = "success"
	StateFailed      State = "failed"
)

// Terminal reports whether the state ends a submission.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

var allowed = map[State][]State{
	StateIdle:        {StateValidating},
	StateValidating:  {StateInvalid, StateResolvingIP, StateFailed},
	StateInvalid:     {StateIdle},
	StateResolvingIP: {StateRendering, StateFailed},
	StateRendering:   {StateEncoding, StateFailed},
	StateEncoding:    {StateSending, StateFailed},
	StateSending:     {StateSending, StateSuccess, StateFailed},
	StateSuccess:     {StateIdle},
	StateFailed:      {StateIdle},
}

// Transition is delivered to listeners on every state change.
type Transition struct {
	From    State
	To      State
	Attempt int // delivery attempt, set while sending
	Message string
	At      time.Time
}

type Listener func(Transition)

// ErrBusy is returned when a submission is already running on the session.
var ErrBusy = fmt.Errorf("a submission is already in progress")

// Session is the per-user submission state: where the flow is, whether
// the submit control is disabled and whether leaving should be confirmed.
type Session struct {
	mu        sync.RWMutex
	state     State
	attempt   int
	busy      bool
	completed bool
	form      *models.FormRecord
	listeners []Listener
	clock     func() time.Time
}

func NewSession() *Session {
	return &Session{state: StateIdle, clock: time.Now}
}

// Subscribe registers l for every future transition.
func (s *Session) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Attempt() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempt
}

// Busy is true while the submit control must stay disabled.
func (s *Session) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

func (s *Session) Completed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed
}

// Edit records the form being filled in. Any edit re-arms the exit guard.
func (s *Session) Edit(form *models.FormRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = form
	s.completed = false
}

// ExitNeedsConfirmation is true while the form holds data that has not
// been delivered.
func (s *Session) ExitNeedsConfirmation() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.completed && s.form.HasData()
}

// begin claims the session for one submission.
func (s *Session) begin(form *models.FormRecord) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.state.Terminal() || s.state == StateInvalid {
		s.state = StateIdle
	}
	s.busy = true
	s.attempt = 0
	s.form = form
	s.completed = false
	s.mu.Unlock()
	return nil
}

// end releases the submit control. On success the form is cleared and the
// exit guard disarmed.
func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.state == StateSuccess {
		s.completed = true
		s.form = nil
	}
}

func (s *Session) transition(to State, attempt int, msg string) error {
	s.mu.Lock()
	from := s.state
	if !canMove(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	s.state = to
	if to == StateSending {
		s.attempt = attempt
	}
	t := Transition{From: from, To: to, Attempt: s.attempt, Message: msg, At: s.clock()}
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(t)
	}
	return nil
}

func canMove(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
