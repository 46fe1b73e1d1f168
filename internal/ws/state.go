package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	diag "github.com/coreman2200/tlc5940/internal/diagnostics"
	"github.com/coreman2200/tlc5940/internal/ledclass"
	"github.com/coreman2200/tlc5940/internal/pattern"
	"github.com/coreman2200/tlc5940/internal/tlc5940"
)

// Device is the part of a running chip the control surface reads.
type Device interface {
	Len() int
	Snapshot() tlc5940.Snapshot
	Stats() tlc5940.Stats
	Timing() tlc5940.Timing
	Done() <-chan struct{}
	Err() error
}

const (
	frameInterval   = 50 * time.Millisecond
	monitorInterval = 250 * time.Millisecond
	writeTimeout    = 200 * time.Millisecond
)

type State struct {
	Device  Device
	LEDs    *ledclass.Class
	Log     zerolog.Logger
	Step    time.Duration // pattern step
	Driver  string
	started time.Time

	mu     sync.Mutex
	runner *pattern.Runner

	// connMu guards both client sets and serializes writes to them.
	connMu      sync.Mutex
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool

	lastFrame tlc5940.Snapshot
	watch     watchState
}

type watchState struct {
	failing   bool
	failures  uint64
	overruns  uint64
	fatalSent bool
}

func NewState(dev Device, leds *ledclass.Class, step time.Duration, log zerolog.Logger) *State {
	return &State{
		Device:      dev,
		LEDs:        leds,
		Log:         log,
		Step:        step,
		started:     time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
	}
}

// Routes wires every handler onto a new mux.
func (s *State) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /leds", s.HandleLEDs)
	mux.HandleFunc("PUT /leds/{name}", s.HandleSetLED)
	mux.HandleFunc("/ws/control", s.HandleControlWS)
	mux.HandleFunc("/ws/frames", s.HandleFramesWS)
	mux.HandleFunc("/ws/diag", s.HandleDiagWS)
	return mux
}

// Run drives the frame broadcast, the pattern runner and the stats monitor
// until ctx ends.
func (s *State) Run(ctx context.Context) {
	frames := time.NewTicker(frameInterval)
	defer frames.Stop()
	monitor := time.NewTicker(monitorInterval)
	defer monitor.Stop()
	step := time.NewTicker(s.Step)
	defer step.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-frames.C:
			s.broadcastFrame()
		case <-monitor.C:
			s.checkStats()
		case <-step.C:
			s.stepPattern()
		}
	}
}

// RunTest starts a pattern, replacing any running one.
func (s *State) RunTest(kind string) error {
	r, err := pattern.NewRunner(pattern.Plan{Kind: pattern.Kind(kind)})
	if err != nil {
		s.pushDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: diag.TestUnknown, Summary: "Unknown test name",
			Evidence: map[string]any{"name": kind},
		})
		return err
	}
	s.mu.Lock()
	s.runner = r
	s.mu.Unlock()
	s.pushDiag(diag.Diagnostic{Severity: diag.Info, Code: diag.TestRunning, Summary: "Running test", Detail: kind})
	return nil
}

func (s *State) stepPattern() {
	s.mu.Lock()
	r := s.runner
	s.mu.Unlock()
	if r == nil {
		return
	}

	leds := s.LEDs.List()
	values := make([]int, len(leds))
	more := r.Step(values)
	for i, l := range leds {
		if _, err := s.LEDs.SetBrightness(l.Name, values[i]); err != nil {
			s.Log.Debug().Err(err).Str("led", l.Name).Msg("pattern write")
		}
	}
	if more {
		return
	}

	s.mu.Lock()
	if s.runner == r {
		s.runner = nil
	}
	s.mu.Unlock()
	s.pushDiag(diag.Diagnostic{Severity: diag.Info, Code: diag.TestDone, Summary: "Test complete", Detail: string(r.Kind())})
}

// checkStats turns scheduler counter changes into diagnostics.
func (s *State) checkStats() {
	st := s.Device.Stats()
	w := &s.watch

	switch {
	case st.TransportFailures > w.failures && !w.failing:
		w.failing = true
		s.pushDiag(diag.FromTransportError(st.LastErr, st.TransportFailures))
	case st.TransportFailures == w.failures && w.failing && !st.Dirty:
		w.failing = false
		s.pushDiag(diag.Diagnostic{
			Severity: diag.Info, Code: diag.TransportRecovered, Summary: "Frame transmit recovered",
			Evidence: map[string]any{"failures": st.TransportFailures},
		})
	}
	w.failures = st.TransportFailures

	if st.Overruns > w.overruns {
		s.pushDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: diag.Overrun, Summary: "Blank timer fell behind",
			Evidence: map[string]any{"skipped": st.Overruns - w.overruns, "total": st.Overruns},
		})
		w.overruns = st.Overruns
	}

	if !w.fatalSent {
		select {
		case <-s.Device.Done():
			if err := s.Device.Err(); err != nil {
				w.fatalSent = true
				s.pushDiag(diag.FromBlankLost(err))
			}
		default:
		}
	}
}

type healthResponse struct {
	State             string  `json:"state"`
	Driver            string  `json:"driver"`
	Channels          int     `json:"channels"`
	Dirty             bool    `json:"dirty"`
	Ticks             uint64  `json:"ticks"`
	Transmits         uint64  `json:"transmits"`
	TransportFailures uint64  `json:"transport_failures"`
	Overruns          uint64  `json:"overruns"`
	BlankPeriodUs     float64 `json:"blank_period_us"`
	LastError         string  `json:"last_error,omitempty"`
	Fatal             string  `json:"fatal,omitempty"`
	Test              string  `json:"test,omitempty"`
	UptimeS           float64 `json:"uptime_s"`
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.Device.Stats()
	resp := healthResponse{
		State:             st.State.String(),
		Driver:            s.Driver,
		Channels:          s.Device.Len(),
		Dirty:             st.Dirty,
		Ticks:             st.Ticks,
		Transmits:         st.Transmits,
		TransportFailures: st.TransportFailures,
		Overruns:          st.Overruns,
		BlankPeriodUs:     float64(s.Device.Timing().BlankPeriod()) / float64(time.Microsecond),
		UptimeS:           time.Since(s.started).Seconds(),
	}
	if st.LastErr != nil {
		resp.LastError = st.LastErr.Error()
	}
	s.mu.Lock()
	if s.runner != nil {
		resp.Test = string(s.runner.Kind())
	}
	s.mu.Unlock()

	code := http.StatusOK
	if err := s.Device.Err(); err != nil {
		resp.Fatal = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *State) HandleLEDs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.LEDs.List())
}

// HandleSetLED takes {"brightness": n}; the value is handed to the driver
// unclamped and the stored value is returned.
func (s *State) HandleSetLED(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var body struct {
		Brightness *int `json:"brightness"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Brightness == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "want {\"brightness\": n}"})
		return
	}
	_, err := s.LEDs.SetBrightness(name, *body.Brightness)
	var led ledclass.LED
	if err == nil {
		led, err = s.LEDs.Get(name)
	}
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ledclass.ErrNotFound) {
			code = http.StatusNotFound
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, led)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// register adds conn to set and drops it once the peer goes away.
func (s *State) register(set map[*websocket.Conn]bool, conn *websocket.Conn) {
	s.connMu.Lock()
	set[conn] = true
	s.connMu.Unlock()

	go func() {
		defer func() {
			s.connMu.Lock()
			delete(set, conn)
			s.connMu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.register(s.clients, conn)

	// Make the next broadcast reach the newcomer even if nothing changed.
	s.connMu.Lock()
	s.lastFrame = nil
	s.connMu.Unlock()
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.register(s.diagClients, conn)
}

type controlMsg struct {
	LED        string `json:"led,omitempty"`
	Brightness *int   `json:"brightness,omitempty"`
	All        *int   `json:"all,omitempty"`
	RunTest    string `json:"runTest,omitempty"`
}

type controlReply struct {
	OK    bool           `json:"ok"`
	Error string         `json:"error,omitempty"`
	LEDs  []ledclass.LED `json:"leds,omitempty"`
}

func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.WriteJSON(controlReply{Error: "bad json"})
			continue
		}
		reply := controlReply{OK: true}
		if err := s.applyControl(msg); err != nil {
			reply = controlReply{Error: err.Error()}
		}
		reply.LEDs = s.LEDs.List()
		_ = conn.WriteJSON(reply)
	}
}

func (s *State) applyControl(msg controlMsg) error {
	if msg.LED != "" && msg.Brightness != nil {
		if _, err := s.LEDs.SetBrightness(msg.LED, *msg.Brightness); err != nil {
			return err
		}
	}
	if msg.All != nil {
		if err := s.LEDs.SetAll(*msg.All); err != nil {
			return err
		}
	}
	if msg.RunTest != "" {
		return s.RunTest(msg.RunTest)
	}
	return nil
}

type frameMsg struct {
	T      int64    `json:"t"`
	Values []uint16 `json:"values"`
	Frame  []byte   `json:"frame"` // base64 in JSON
}

// broadcastFrame sends the current snapshot and its packed form when it
// differs from the last one sent.
func (s *State) broadcastFrame() {
	snap := s.Device.Snapshot()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if len(s.clients) == 0 || equalSnap(snap, s.lastFrame) {
		return
	}
	s.lastFrame = snap

	frame := make([]byte, tlc5940.FrameSize(len(snap)))
	if err := tlc5940.Encode(frame, snap); err != nil {
		s.Log.Debug().Err(err).Msg("encode preview frame")
		return
	}
	b, _ := json.Marshal(frameMsg{T: time.Now().UnixNano(), Values: snap, Frame: frame})
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			s.Log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *State) pushDiag(d diag.Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	ev := s.Log.Info()
	switch d.Severity {
	case diag.Warn:
		ev = s.Log.Warn()
	case diag.Err:
		ev = s.Log.Error()
	}
	ev.Str("code", d.Code).Str("detail", d.Detail).Msg(d.Summary)

	b, _ := json.Marshal(d)
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for c := range s.diagClients {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

func equalSnap(a, b tlc5940.Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
