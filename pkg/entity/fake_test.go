package entity

import (
	"context"
	"sync"

	"github.com/puchupala/hass-nature-remo/pkg/remo"
)

type sent struct {
	target string
	button string
}

// fakeRelay records every signal and button it is asked to send.
type fakeRelay struct {
	mu   sync.Mutex
	sent []sent
	err  error

	// input is reported back by SendTVButton, like the cloud does
	input string
}

func (f *fakeRelay) SendSignal(ctx context.Context, signalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	// The real client waits on its rate limiter first, which fails on a
	// done context.
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sent = append(f.sent, sent{target: signalID})
	return nil
}

func (f *fakeRelay) SendTVButton(ctx context.Context, applianceID, button string) (*remo.TVState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sent{target: applianceID, button: button})
	return &remo.TVState{Input: f.input}, nil
}

func (f *fakeRelay) calls() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakeRelay) buttons() []string {
	var out []string
	for _, s := range f.calls() {
		out = append(out, s.button)
	}
	return out
}

type recordingWriter struct {
	mu     sync.Mutex
	states []map[string]any
}

func (w *recordingWriter) WriteState(e Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.states = append(w.states, e.State())
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.states)
}
