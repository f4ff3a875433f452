package session

import (
	"alcyxob/wellness-portal/internal/domain"
	"sync"
)

// Navigator moves the user between landing routes.
type Navigator interface {
	Location() domain.Route
	Navigate(to domain.Route)
}

// History is a Navigator that records every navigation. The HTTP layer uses
// it to tell the front end where to go.
type History struct {
	mu      sync.Mutex
	current domain.Route
	visited []domain.Route
}

// NewHistory starts at the given location.
func NewHistory(start domain.Route) *History {
	if start == "" {
		start = domain.RouteHome
	}
	return &History{current: start}
}

func (h *History) Location() domain.Route {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *History) Navigate(to domain.Route) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = to
	h.visited = append(h.visited, to)
}

// Visited returns the routes navigated to, oldest first.
func (h *History) Visited() []domain.Route {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Route(nil), h.visited...)
}

// NoticeLevel grades a user-facing notification.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient user-facing message (a toast).
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// Notices collects notices in order.
type Notices struct {
	mu   sync.Mutex
	list []Notice
}

func (n *Notices) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, notice)
}

func (n *Notices) All() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice{}, n.list...)
}
