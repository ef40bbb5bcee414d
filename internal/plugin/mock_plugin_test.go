package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/apipack/internal/logger"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name, event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name+":"+event)
}

func (c *callLog) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callLog) count(entry string) int {
	n := 0
	for _, call := range c.all() {
		if call == entry {
			n++
		}
	}
	return n
}

type recorderConfig struct {
	Settings `yaml:",inline"`
	Label    string `yaml:"label"`
	Retries  int    `yaml:"retries" validate:"gte=0,lte=5"`
}

type MockPluginOption func(*recorder)

type recorder struct {
	Base
	cfg   recorderConfig
	calls *callLog

	initFailures *int
	initPanic    bool
	cleanupErr   error
	cleanupPanic bool
	hookErrs     map[Hook]error
	hookPanics   map[Hook]bool
	transform    func(string) string
	caps         []Capability
}

func (r *recorder) ConfigSchema() any { return &r.cfg }

func (r *recorder) Initialize(context.Context) error {
	r.calls.add(r.Name(), "initialize")
	if r.initPanic {
		panic("init exploded")
	}
	if r.initFailures != nil && *r.initFailures > 0 {
		*r.initFailures--
		return errors.New("resource unavailable")
	}
	return nil
}

func (r *recorder) Cleanup(context.Context) error {
	r.calls.add(r.Name(), "cleanup")
	if r.cleanupPanic {
		panic("cleanup exploded")
	}
	return r.cleanupErr
}

func (r *recorder) hook(h Hook) error {
	r.calls.add(r.Name(), string(h))
	if r.hookPanics[h] {
		panic(fmt.Sprintf("%s exploded", h))
	}
	return r.hookErrs[h]
}

func (r *recorder) OnGenerateStart(context.Context, Spec, RunContext) error {
	return r.hook(HookGenerateStart)
}

func (r *recorder) OnGenerateEnd(context.Context, Spec, RunContext) error {
	return r.hook(HookGenerateEnd)
}

func (r *recorder) OnGenerateError(context.Context, error, Spec, RunContext) error {
	return r.hook(HookGenerateError)
}

func (r *recorder) OnFileGenerate(_ context.Context, _, content string, _ RunContext) (string, bool, error) {
	if err := r.hook(HookFileGenerate); err != nil {
		return "", false, err
	}
	if r.transform == nil {
		return content, false, nil
	}
	return r.transform(content), true, nil
}

func (r *recorder) OnFileWritten(context.Context, string, RunContext) error {
	return r.hook(HookFileWritten)
}

func (r *recorder) Capabilities() []Capability { return r.caps }

func withInitFailures(n int) MockPluginOption {
	return func(r *recorder) {
		remaining := n
		r.initFailures = &remaining
	}
}

func withSharedInitFailures(counter *int) MockPluginOption {
	return func(r *recorder) { r.initFailures = counter }
}

func withInitPanic() MockPluginOption {
	return func(r *recorder) { r.initPanic = true }
}

func withCleanupError(err error) MockPluginOption {
	return func(r *recorder) { r.cleanupErr = err }
}

func withCleanupPanic() MockPluginOption {
	return func(r *recorder) { r.cleanupPanic = true }
}

func withHookError(h Hook, err error) MockPluginOption {
	return func(r *recorder) {
		if r.hookErrs == nil {
			r.hookErrs = make(map[Hook]error)
		}
		r.hookErrs[h] = err
	}
}

func withHookPanic(h Hook) MockPluginOption {
	return func(r *recorder) {
		if r.hookPanics == nil {
			r.hookPanics = make(map[Hook]bool)
		}
		r.hookPanics[h] = true
	}
}

func withTransform(fn func(string) string) MockPluginOption {
	return func(r *recorder) { r.transform = fn }
}

func withCapabilities(caps ...Capability) MockPluginOption {
	return func(r *recorder) { r.caps = caps }
}

// recorderCandidate offers a recorder under an explicit name. Every
// construction is logged as "<name>:new".
func recorderCandidate(name string, calls *callLog, opts ...MockPluginOption) Candidate {
	return Candidate{
		Name: name,
		Type: reflect.TypeFor[*recorder](),
		New: func() any {
			calls.add(name, "new")
			r := &recorder{calls: calls}
			for _, opt := range opts {
				opt(r)
			}
			return r
		},
	}
}

func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	log, err := logger.New(logger.Options{Level: "debug", Writer: buf})
	require.NoError(t, err)
	return log, buf
}

// newTestManager registers the given candidates, in order, under source "test".
func newTestManager(t *testing.T, candidates ...Candidate) (*Manager, *bytes.Buffer) {
	t.Helper()
	log, buf := newTestLogger(t)
	reg := NewRegistry(log, WithCatalog(NewCatalog()))
	for _, c := range candidates {
		_, err := reg.Register("test", c.Name, c)
		require.NoError(t, err)
	}
	m := NewManager(reg, log)
	t.Cleanup(func() { _ = m.Close() })
	return m, buf
}
