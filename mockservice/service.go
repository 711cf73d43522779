// Package mockservice implements an in-memory greeting receiver and log API.
// Accepted greetings are appended to a log that is read back through the same
// endpoints the real log API exposes, so the harness can run end to end
// without the service under test. Faults are injected by send count.
package mockservice

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/c360studio/greeting-e2e/greeting"
	"github.com/google/uuid"
)

const (
	// DefaultPageLimit is used when a log request carries no limit.
	DefaultPageLimit = 100
	// MaxPageLimit caps the page size of a log request.
	MaxPageLimit = 1000
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFailEvery makes every nth send fail with 503. Zero disables it.
func WithFailEvery(n int) Option {
	return func(s *Service) { s.failEvery = n }
}

// WithDropEvery makes every nth accepted greeting vanish: it is acknowledged
// but never written to the log. Zero disables it.
func WithDropEvery(n int) Option {
	return func(s *Service) { s.dropEvery = n }
}

// WithDuplicateEvery makes every nth accepted greeting acknowledged with the
// message id of the previous one. Zero disables it.
func WithDuplicateEvery(n int) Option {
	return func(s *Service) { s.duplicateEvery = n }
}

// WithForeignTraffic appends n entries for unknown message ids before each
// accepted greeting, simulating other producers.
func WithForeignTraffic(n int) Option {
	return func(s *Service) { s.foreign = n }
}

// WithLogDelay delays the visibility of each log entry.
func WithLogDelay(d time.Duration) Option {
	return func(s *Service) { s.logDelay = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type record struct {
	entry     greeting.LogEntry
	visibleAt time.Time
}

// Stats are the counters served on /stats.
type Stats struct {
	Sends      int `json:"sends"`
	Accepted   int `json:"accepted"`
	Failed     int `json:"failed"`
	Dropped    int `json:"dropped"`
	Duplicated int `json:"duplicated"`
	Entries    int `json:"entries"`
}

// Service is the in-memory greeting service. It is safe for concurrent use.
type Service struct {
	logger         *slog.Logger
	now            func() time.Time
	failEvery      int
	dropEvery      int
	duplicateEvery int
	foreign        int
	logDelay       time.Duration

	mu         sync.Mutex
	log        []record
	greetingID int64
	lastMsgID  string
	stats      Stats
}

// New creates an empty service.
func New(opts ...Option) *Service {
	s := &Service{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes of the receiver and the log API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /greeting", s.handleGreeting)
	mux.HandleFunc("GET /log/last", s.handleLast)
	mux.HandleFunc("GET /log", s.handleLog)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

// AppendForeign writes n entries for message ids nobody sent.
func (s *Service) AppendForeign(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.appendLocked(uuid.NewString())
	}
}

// Entries returns a copy of the visible log.
func (s *Service) Entries() []greeting.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleLocked(0, len(s.log))
}

// Stats returns a snapshot of the counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Entries = len(s.log)
	return st
}

func (s *Service) appendLocked(messageID string) {
	id := int64(len(s.log) + 1)
	s.greetingID++
	now := s.now().UTC()
	s.log = append(s.log, record{
		entry: greeting.LogEntry{
			ID:         id,
			GreetingID: s.greetingID,
			MessageID:  messageID,
			Created:    now,
		},
		visibleAt: now.Add(s.logDelay),
	})
}

// visibleLocked returns up to limit visible entries with id >= offset.
// Ids are dense, so the first invisible entry ends the page.
func (s *Service) visibleLocked(offset int64, limit int) []greeting.LogEntry {
	now := s.now().UTC()
	start := max(offset-1, 0)
	page := []greeting.LogEntry{}
	for i := start; i < int64(len(s.log)) && len(page) < limit; i++ {
		rec := s.log[i]
		if rec.visibleAt.After(now) {
			break
		}
		page = append(page, rec.entry)
	}
	return page
}

func (s *Service) handleGreeting(w http.ResponseWriter, r *http.Request) {
	var cmd greeting.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := validateCommand(cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.stats.Sends++
	send := s.stats.Sends
	if every(s.failEvery, send) {
		s.stats.Failed++
		s.mu.Unlock()
		s.logger.Warn("Injected send failure", "send", send, "external_reference", cmd.ExternalReference)
		http.Error(w, "injected failure", http.StatusServiceUnavailable)
		return
	}

	s.stats.Accepted++
	accepted := s.stats.Accepted
	messageID := uuid.NewString()
	if every(s.duplicateEvery, accepted) && s.lastMsgID != "" {
		messageID = s.lastMsgID
		s.stats.Duplicated++
	}
	s.lastMsgID = messageID

	for range s.foreign {
		s.appendLocked(uuid.NewString())
	}
	dropped := every(s.dropEvery, accepted)
	if dropped {
		s.stats.Dropped++
	} else {
		s.appendLocked(messageID)
	}
	s.mu.Unlock()

	s.logger.Debug("Accepted greeting",
		"external_reference", cmd.ExternalReference,
		"message_id", messageID,
		"dropped", dropped)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(greeting.Response{MessageID: messageID})
}

func (s *Service) handleLast(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	page := s.visibleLocked(1, len(s.log))
	s.mu.Unlock()

	if len(page) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page[len(page)-1])
}

func (s *Service) handleLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if dir := q.Get("direction"); dir != "" && dir != "forward" {
		http.Error(w, fmt.Sprintf("unsupported direction %q", dir), http.StatusBadRequest)
		return
	}

	offset, err := strconv.ParseInt(q.Get("offset"), 10, 64)
	if err != nil || offset < 0 {
		http.Error(w, fmt.Sprintf("invalid offset %q", q.Get("offset")), http.StatusBadRequest)
		return
	}

	limit := DefaultPageLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			http.Error(w, fmt.Sprintf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
	}
	limit = min(limit, MaxPageLimit)

	s.mu.Lock()
	page := s.visibleLocked(offset, limit)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Service) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Stats())
}

func validateCommand(cmd greeting.Command) error {
	switch {
	case cmd.ExternalReference == "":
		return fmt.Errorf("externalReference is required")
	case cmd.To == "" || cmd.From == "":
		return fmt.Errorf("to and from are required")
	case cmd.Heading == "" || cmd.Message == "":
		return fmt.Errorf("heading and message are required")
	}
	return nil
}

func every(n, count int) bool {
	return n > 0 && count%n == 0
}
