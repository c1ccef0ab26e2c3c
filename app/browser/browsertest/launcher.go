// Package browsertest serves static HTML through the browser.Session contract.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lysyi3m/article-comb/app/browser"
)

var errNotFound = errors.New("page not found")

var _ browser.Launcher = (*Launcher)(nil)

type Launcher struct {
	mu        sync.Mutex
	pages     map[string]string
	failures  map[string]error
	snapshots map[string][]string
	scripts   map[string][]string

	LaunchErr   error
	Opened      int
	Closed      int
	Snapshotted int
	Visited     []string
	Evaluated   []string
}

func New() *Launcher {
	return &Launcher{
		pages:     make(map[string]string),
		failures:  make(map[string]error),
		snapshots: make(map[string][]string),
		scripts:   make(map[string][]string),
	}
}

// Page registers the HTML returned when url is loaded.
func (l *Launcher) Page(url, html string) *Launcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pages[url] = html
	return l
}

// Fail makes loading url return a navigation error.
func (l *Launcher) Fail(url string, err error) *Launcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[url] = err
	return l
}

// Snapshots queues DOM states returned by successive Snapshot calls after url is loaded.
func (l *Launcher) Snapshots(url string, htmls ...string) *Launcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots[url] = append(l.snapshots[url], htmls...)
	return l
}

// Evaluations queues values returned by successive Evaluate calls after url is loaded.
// Evaluate fails once the queue is exhausted.
func (l *Launcher) Evaluations(url string, values ...string) *Launcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scripts[url] = append(l.scripts[url], values...)
	return l
}

func (l *Launcher) VisitCount(url string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, v := range l.Visited {
		if v == url {
			n++
		}
	}
	return n
}

func (l *Launcher) OpenSessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Opened - l.Closed
}

func (l *Launcher) NewSession(ctx context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.LaunchErr != nil {
		return nil, fmt.Errorf("%w: %v", browser.ErrLaunch, l.LaunchErr)
	}
	l.Opened++

	return &Session{launcher: l}, nil
}

type Session struct {
	launcher *Launcher
	current  string
	snapIdx  int
	evalIdx  int
	closed   bool
}

func (s *Session) Load(ctx context.Context, url string, opts browser.LoadOptions) (*browser.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &browser.FetchError{URL: url, Err: err}
	}

	l := s.launcher
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Visited = append(l.Visited, url)

	if err, ok := l.failures[url]; ok {
		return nil, &browser.FetchError{URL: url, Err: err}
	}

	html, ok := l.pages[url]
	if !ok {
		return nil, &browser.FetchError{URL: url, Err: errNotFound}
	}

	s.current = url
	s.snapIdx = 0
	s.evalIdx = 0

	return browser.NewDocument(url, html)
}

func (s *Session) Snapshot(ctx context.Context) (*browser.Document, error) {
	l := s.launcher
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.current == "" {
		return nil, errors.New("no page loaded")
	}
	l.Snapshotted++

	if queued := l.snapshots[s.current]; s.snapIdx < len(queued) {
		html := queued[s.snapIdx]
		s.snapIdx++
		return browser.NewDocument(s.current, html)
	}

	return browser.NewDocument(s.current, l.pages[s.current])
}

func (s *Session) Evaluate(ctx context.Context, js string) (string, error) {
	l := s.launcher
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Evaluated = append(l.Evaluated, js)

	if queued := l.scripts[s.current]; s.current != "" && s.evalIdx < len(queued) {
		v := queued[s.evalIdx]
		s.evalIdx++
		return v, nil
	}

	return "", errors.New("script evaluation is not supported by the static browser")
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte{}, nil
}

func (s *Session) Close() error {
	l := s.launcher
	l.mu.Lock()
	defer l.mu.Unlock()

	if !s.closed {
		s.closed = true
		l.Closed++
	}
	return nil
}
