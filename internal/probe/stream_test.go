package probe

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsServer starts a WebSocket test server that hands each accepted
// connection to handler and returns its ws:// URL.
func wsServer(t *testing.T, handler func(c *websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// drain reads until the connection ends and reports that on closed.
func drain(c *websocket.Conn, closed chan<- struct{}) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if closed != nil {
				close(closed)
			}
			return
		}
	}
}

func testStreamProbe(responseTimeout time.Duration) (*StreamProbe, **session) {
	var got *session
	p := &StreamProbe{
		ConnectTimeout:  2 * time.Second,
		ResponseTimeout: responseTimeout,
		Grace:           time.Second,
		Marker:          DefaultMarker,
		Payload: Payload{
			Query:  "222 1000",
			User:   "Divya D",
			UserID: 193,
			Page:   "Neurovoyager",
		},
		closeWait: 500 * time.Millisecond,
	}
	p.observe = func(s *session) { got = s }
	return p, &got
}

func TestStreamProbe_CompletesOnMarker(t *testing.T) {
	received := make(chan map[string]any, 1)
	url := wsServer(t, func(c *websocket.Conn) {
		var req map[string]any
		if err := c.ReadJSON(&req); err != nil {
			return
		}
		received <- req
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"partial":"x"}`))
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"partial":"y###END"}`))
		drain(c, nil)
	})

	p, sess := testStreamProbe(15 * time.Second)
	out := p.Probe(context.Background(), Endpoint{Name: "agent", Address: url, Kind: KindStream})

	if !out.Healthy {
		t.Fatalf("healthy = false, diagnostic = %q", out.Diagnostic)
	}
	if out.Elapsed >= 2*time.Second {
		t.Errorf("elapsed = %s, want < 2s", out.Elapsed)
	}
	if out.Class != "" {
		t.Errorf("class = %q, want empty", out.Class)
	}
	if want := `{"partial":"x"}{"partial":"y###END"}`; out.Response != want {
		t.Errorf("response = %q, want %q", out.Response, want)
	}

	s := *sess
	if s.term != termSuccess {
		t.Errorf("terminal = %s, want success", s.term)
	}
	if s.resolutions != 1 {
		t.Errorf("resolutions = %d, want 1", s.resolutions)
	}
	if s.timer.Fired() {
		t.Error("timer fired after success")
	}
	if len(s.fragments) != 2 {
		t.Errorf("fragments = %d, want 2", len(s.fragments))
	}

	req := <-received
	for _, key := range []string{"query", "user", "userId", "page", "page_context"} {
		if _, ok := req[key]; !ok {
			t.Errorf("probe message missing %q: %v", key, req)
		}
	}
	if req["query"] != "222 1000" {
		t.Errorf("query = %v, want %q", req["query"], "222 1000")
	}
	if _, ok := req["page_context"].(map[string]any); !ok {
		t.Errorf("page_context = %v, want an object", req["page_context"])
	}
}

func TestStreamProbe_MarkerAcrossFragments(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		_ = c.WriteMessage(websocket.TextMessage, []byte("answer ###"))
		_ = c.WriteMessage(websocket.TextMessage, []byte("END"))
		drain(c, nil)
	})

	p, _ := testStreamProbe(5 * time.Second)
	out := p.Probe(context.Background(), Endpoint{Name: "agent", Address: url, Kind: KindStream})
	if !out.Healthy {
		t.Fatalf("healthy = false, diagnostic = %q", out.Diagnostic)
	}
}

func TestStreamProbe_Timeout(t *testing.T) {
	closed := make(chan struct{})
	url := wsServer(t, func(c *websocket.Conn) {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		drain(c, closed)
	})

	p, sess := testStreamProbe(200 * time.Millisecond)
	out := p.Probe(context.Background(), Endpoint{Name: "agent", Address: url, Kind: KindStream})

	if out.Healthy {
		t.Fatal("healthy = true, want false")
	}
	if out.Class != ErrResponseTimeout {
		t.Errorf("class = %q, want %q", out.Class, ErrResponseTimeout)
	}
	if !strings.Contains(out.Diagnostic, "no complete response within timeout") {
		t.Errorf("diagnostic = %q", out.Diagnostic)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Error("server never observed the connection closing")
	}

	s := *sess
	if !s.timer.Fired() {
		t.Error("timer did not fire")
	}
	if s.resolutions != 1 {
		t.Errorf("resolutions = %d, want 1", s.resolutions)
	}
	if s.state != stateClosed {
		t.Errorf("state = %s, want closed", s.state)
	}
}

func TestStreamProbe_LateMarkerIgnored(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		time.Sleep(150 * time.Millisecond)
		_ = c.WriteMessage(websocket.TextMessage, []byte("late ###END"))
		drain(c, nil)
	})

	p, sess := testStreamProbe(50 * time.Millisecond)
	out := p.Probe(context.Background(), Endpoint{Name: "agent", Address: url, Kind: KindStream})

	if out.Healthy {
		t.Fatal("healthy = true, want false")
	}
	if out.Class != ErrResponseTimeout {
		t.Errorf("class = %q, want %q", out.Class, ErrResponseTimeout)
	}
	if (*sess).resolutions != 1 {
		t.Errorf("resolutions = %d, want 1", (*sess).resolutions)
	}
}

func TestStreamProbe_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p, sess := testStreamProbe(time.Second)
	out := p.Probe(context.Background(), Endpoint{Name: "agent", Address: "ws://" + addr + "/ws", Kind: KindStream})

	if out.Healthy {
		t.Fatal("healthy = true, want false")
	}
	if out.Class != ErrConnectionFailure {
		t.Errorf("class = %q, want %q", out.Class, ErrConnectionFailure)
	}
	if !strings.Contains(out.Diagnostic, "connection refused") {
		t.Errorf("diagnostic = %q, want it to mention the refusal", out.Diagnostic)
	}
	if (*sess).timer != nil {
		t.Error("timer was armed for a connection that never opened")
	}
}

func TestStreamProbe_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p, _ := testStreamProbe(time.Second)
	out := p.Probe(context.Background(), Endpoint{
		Name:    "agent",
		Address: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Kind:    KindStream,
	})

	if out.Class != ErrConnectionFailure {
		t.Errorf("class = %q, want %q", out.Class, ErrConnectionFailure)
	}
	if !strings.Contains(out.Diagnostic, "403") {
		t.Errorf("diagnostic = %q, want status 403", out.Diagnostic)
	}
}

func TestStreamProbe_PeerClosesEarly(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "agent crashed")
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		drain(c, nil)
	})

	p, _ := testStreamProbe(5 * time.Second)
	out := p.Probe(context.Background(), Endpoint{Name: "agent", Address: url, Kind: KindStream})

	if out.Class != ErrTransport {
		t.Errorf("class = %q, want %q", out.Class, ErrTransport)
	}
	if !strings.Contains(out.Diagnostic, "1011") {
		t.Errorf("diagnostic = %q, want close code 1011", out.Diagnostic)
	}
}

func TestStreamProbe_Interrupted(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) {
		drain(c, nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	p, sess := testStreamProbe(10 * time.Second)
	start := time.Now()
	out := p.Probe(ctx, Endpoint{Name: "agent", Address: url, Kind: KindStream})

	if time.Since(start) > 3*time.Second {
		t.Errorf("probe took %s after interruption", time.Since(start))
	}
	if out.Class != ErrTransport {
		t.Errorf("class = %q, want %q", out.Class, ErrTransport)
	}
	if !strings.Contains(out.Diagnostic, "interrupted") {
		t.Errorf("diagnostic = %q", out.Diagnostic)
	}
	s := *sess
	if s.timer.Fired() {
		t.Error("timer fired after interruption cleanup")
	}
	select {
	case <-s.gate:
	default:
		t.Error("reader still running after Probe returned")
	}
}

func TestStreamProbe_IndependentSessions(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		_ = c.WriteMessage(websocket.TextMessage, []byte("done ###END"))
		drain(c, nil)
	})

	p, sess := testStreamProbe(5 * time.Second)
	ep := Endpoint{Name: "agent", Address: url, Kind: KindStream}

	first := p.Probe(context.Background(), ep)
	s1 := *sess
	second := p.Probe(context.Background(), ep)
	s2 := *sess

	if !first.Healthy || !second.Healthy {
		t.Fatalf("healthy = %v, %v; want both true", first.Healthy, second.Healthy)
	}
	if s1 == s2 {
		t.Fatal("sessions shared between invocations")
	}
	if first.Response != "done ###END" || second.Response != "done ###END" {
		t.Errorf("responses leaked across sessions: %q, %q", first.Response, second.Response)
	}
}

func TestStreamProbe_ExactlyOnceUnderRace(t *testing.T) {
	const timeout = 30 * time.Millisecond
	url := wsServer(t, func(c *websocket.Conn) {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		time.Sleep(timeout)
		_ = c.WriteMessage(websocket.TextMessage, []byte("###END"))
		drain(c, nil)
	})

	for i := 0; i < 20; i++ {
		p, sess := testStreamProbe(timeout)
		out := p.Probe(context.Background(), Endpoint{Name: "agent", Address: url, Kind: KindStream})
		s := *sess

		if s.resolutions != 1 {
			t.Fatalf("run %d: resolutions = %d, want 1", i, s.resolutions)
		}
		switch s.term {
		case termSuccess:
			if !out.Healthy || s.timer.Fired() {
				t.Fatalf("run %d: success with healthy=%v fired=%v", i, out.Healthy, s.timer.Fired())
			}
		case termTimeout:
			if out.Healthy || out.Class != ErrResponseTimeout {
				t.Fatalf("run %d: timeout with healthy=%v class=%q", i, out.Healthy, out.Class)
			}
		default:
			t.Fatalf("run %d: terminal = %s", i, s.term)
		}
	}
}

func TestPayloadFor(t *testing.T) {
	p := &StreamProbe{Payload: Payload{Query: "default"}}

	got := p.payloadFor(Endpoint{})
	if got.Query != "default" {
		t.Errorf("query = %q, want %q", got.Query, "default")
	}
	if got.PageContext == nil {
		t.Error("page_context = nil, want empty object")
	}

	got = p.payloadFor(Endpoint{Payload: Payload{Query: "hi", Page: "Atlas Editor"}})
	if got.Query != "hi" || got.Page != "Atlas Editor" {
		t.Errorf("payload = %+v, want endpoint override", got)
	}

	b, err := json.Marshal(p.payloadFor(Endpoint{}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"page_context":{}`) {
		t.Errorf("json = %s, want empty page_context object", b)
	}
}
