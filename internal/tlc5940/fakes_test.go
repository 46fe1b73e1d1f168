package tlc5940

import (
	"errors"
	"sync"

	"github.com/coreman2200/tlc5940/internal/ledclass"
)

var errBus = errors.New("bus error")

type fakeTx struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	during func() // runs inside Transmit
}

func (f *fakeTx) Transmit(frame []byte) error {
	f.mu.Lock()
	during := f.during
	fail := f.fail
	f.mu.Unlock()
	if during != nil {
		during()
	}
	if fail {
		return errBus
	}
	f.mu.Lock()
	f.frames = append(f.frames, append([]byte(nil), frame...))
	f.mu.Unlock()
	return nil
}

func (f *fakeTx) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeTx) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

type fakeLine struct {
	mu        sync.Mutex
	events    []string
	level     bool
	failAfter int // Set fails once this many calls succeeded; 0 never
	sets      int
	confErr   error
}

func (l *fakeLine) ConfigureOutput(initial bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.confErr != nil {
		return l.confErr
	}
	l.level = initial
	l.events = append(l.events, "blank:configure")
	return nil
}

func (l *fakeLine) Set(high bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAfter > 0 && l.sets >= l.failAfter {
		return errors.New("line gone")
	}
	l.sets++
	l.level = high
	if high {
		l.events = append(l.events, "blank:high")
	} else {
		l.events = append(l.events, "blank:low")
	}
	return nil
}

func (l *fakeLine) log() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeClock struct {
	events    *[]string
	enableErr error
	duty      int64
	period    int64
}

func (c *fakeClock) Configure(duty, period int64) error {
	c.duty, c.period = duty, period
	*c.events = append(*c.events, "clock:configure")
	return nil
}

func (c *fakeClock) Enable() error {
	if c.enableErr != nil {
		return c.enableErr
	}
	*c.events = append(*c.events, "clock:enable")
	return nil
}

func (c *fakeClock) Disable() error {
	*c.events = append(*c.events, "clock:disable")
	return nil
}

type fakeHost struct {
	events  *[]string
	failOn  string
	setters map[string]ledclass.SetFunc
}

func (h *fakeHost) Register(name string, max int, set ledclass.SetFunc) error {
	if name == h.failOn {
		return errors.New("register refused")
	}
	if h.setters == nil {
		h.setters = map[string]ledclass.SetFunc{}
	}
	h.setters[name] = set
	*h.events = append(*h.events, "register:"+name)
	return nil
}

func (h *fakeHost) Unregister(name string) error {
	delete(h.setters, name)
	*h.events = append(*h.events, "unregister:"+name)
	return nil
}
