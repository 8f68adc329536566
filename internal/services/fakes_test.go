package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexconsult/simples-nacional/internal/cache"
	"github.com/nexconsult/simples-nacional/internal/registry"
)

// recorder keeps the order of side effects across fakes
type recorder struct {
	events []string
}

func (r *recorder) add(format string, args ...interface{}) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) sleep(d time.Duration) {
	r.add("sleep:%s", d)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, e := range r.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type fetcherMock struct {
	rec     *recorder
	FetchFn func(ctx context.Context, cnpj string, attempt int) (*registry.Response, error)
	calls   map[string]int
}

func (m *fetcherMock) Fetch(ctx context.Context, cnpj string) (*registry.Response, error) {
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[cnpj]++
	if m.rec != nil {
		m.rec.add("fetch:%s", cnpj)
	}
	if m.FetchFn == nil {
		return nil, errors.New("FetchFn not set")
	}
	return m.FetchFn(ctx, cnpj, m.calls[cnpj])
}

func (m *fetcherMock) total() int {
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

type storeMock struct {
	rec     *recorder
	entries cache.Entries
	LoadErr error
	SaveErr error
	loads   int
	saves   int
}

func (s *storeMock) Name() string { return "mock" }

func (s *storeMock) Load(_ context.Context) (cache.Entries, error) {
	s.loads++
	if s.rec != nil {
		s.rec.add("load")
	}
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return s.entries.Clone(), nil
}

func (s *storeMock) Save(_ context.Context, entries cache.Entries) error {
	s.saves++
	if s.rec != nil {
		s.rec.add("save")
	}
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.entries = entries.Clone()
	return nil
}

func okBody(simples, mei bool) []byte {
	return []byte(fmt.Sprintf(`{"taxId":"x","company":{"name":"ACME","simples":{"optant":%t},"simei":{"optant":%t}}}`, simples, mei))
}

func respond(code int, body []byte) (*registry.Response, error) {
	return &registry.Response{StatusCode: code, Body: body}, nil
}

func timeoutErr() error {
	return fmt.Errorf("%w: context deadline exceeded", registry.ErrTimeout)
}
