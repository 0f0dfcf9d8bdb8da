package probe

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateConnecting
	stateOpen
	stateAwaiting
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateAwaiting:
		return "awaiting"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type terminal int

const (
	termNone terminal = iota
	termSuccess
	termTimeout
	termError
)

func (t terminal) String() string {
	switch t {
	case termNone:
		return "none"
	case termSuccess:
		return "success"
	case termTimeout:
		return "timeout"
	case termError:
		return "error"
	default:
		return fmt.Sprintf("terminal(%d)", int(t))
	}
}

// session is the mutable state of one stream probe attempt. The terminal
// slot is written at most once; every event after that is ignored.
type session struct {
	marker    string
	closeWait time.Duration
	log       *slog.Logger

	mu          sync.Mutex
	state       sessionState
	term        terminal
	err         error
	fragments   []string
	buf         strings.Builder
	resolutions int
	closeCode   int
	closeText   string

	conn    *websocket.Conn
	timer   *oneShot
	reading bool

	closeSent sync.Once
	connClose sync.Once
	gateOnce  sync.Once
	gate      chan struct{}
}

func newSession(marker string, closeWait time.Duration, log *slog.Logger) *session {
	return &session{
		marker:    marker,
		closeWait: closeWait,
		log:       log,
		gate:      make(chan struct{}),
	}
}

func (s *session) setState(st sessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.term == termNone {
		s.state = st
	}
}

// resolve moves the session into its terminal state. Only the first call
// wins; it reports whether this call did.
func (s *session) resolve(t terminal, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.term != termNone {
		return false
	}
	s.term = t
	s.err = err
	s.state = stateClosed
	s.resolutions++
	return true
}

func (s *session) result() (terminal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term, s.err
}

func (s *session) response() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// appendFragment buffers a message and reports whether the buffered text now
// contains the completion marker. Fragments after resolution are dropped.
func (s *session) appendFragment(fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.term != termNone {
		return false
	}
	s.fragments = append(s.fragments, fragment)
	s.buf.WriteString(fragment)
	return strings.Contains(s.buf.String(), s.marker)
}

func (s *session) onMessage(fragment string) {
	s.log.Debug("received", "fragment", fragment)
	if !s.appendFragment(fragment) {
		return
	}
	if s.resolve(termSuccess, nil) {
		s.timer.Cancel()
		s.log.Info("full agent response received")
		s.initiateClose(websocket.CloseNormalClosure, "response complete")
	}
}

func (s *session) onTimeout(d time.Duration) {
	if s.resolve(termTimeout, timeoutError(d)) {
		s.log.Error("timeout waiting for response", "timeout", d)
		s.initiateClose(websocket.CloseNormalClosure, "response timeout")
	}
}

func (s *session) onReadError(err error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		s.mu.Lock()
		s.closeCode, s.closeText = ce.Code, ce.Text
		s.mu.Unlock()
		s.log.Info("connection closed", "code", ce.Code, "reason", ce.Text)
	}
	terr := transportError(err)
	if s.resolve(termError, terr) {
		s.log.Error("transport error", "error", terr)
	}
}

// initiateClose starts the close handshake once. The read deadline bounds how
// long the read loop waits for the peer to echo the close frame.
func (s *session) initiateClose(code int, text string) {
	s.closeSent.Do(func() {
		deadline := time.Now().Add(s.closeWait)
		msg := websocket.FormatCloseMessage(code, text)
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			s.log.Debug("writing close frame", "error", err)
		}
		_ = s.conn.SetReadDeadline(deadline)
	})
}

func (s *session) closeConn() {
	s.connClose.Do(func() {
		_ = s.conn.Close()
	})
}

// readLoop delivers inbound messages until the connection ends. Its exit is
// the single convergence point: it always releases the gate exactly once.
func (s *session) readLoop() {
	defer s.gateOnce.Do(func() { close(s.gate) })
	defer s.closeConn()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.onReadError(err)
			return
		}
		s.onMessage(string(data))
	}
}

func (s *session) startReading() {
	s.reading = true
	go s.readLoop()
}

// cleanup releases everything the session holds. It runs on every exit path
// and returns only after the timer and reader goroutines have stopped.
func (s *session) cleanup() {
	s.timer.Cancel()
	if s.conn != nil {
		s.initiateClose(websocket.CloseGoingAway, "probe finished")
		s.closeConn()
	}
	s.timer.Wait()
	if s.reading {
		<-s.gate
	}
}

func timeoutError(d time.Duration) *Error {
	return &Error{
		Kind: ErrResponseTimeout,
		Msg:  fmt.Sprintf("no complete response within timeout (%s)", d),
	}
}

func transportError(err error) *Error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &Error{
			Kind: ErrTransport,
			Msg:  fmt.Sprintf("connection closed before response completed (code %d: %s)", ce.Code, ce.Text),
			Err:  err,
		}
	}
	return &Error{Kind: ErrTransport, Msg: fmt.Sprintf("transport error: %v", err), Err: err}
}
