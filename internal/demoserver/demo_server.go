package demoserver

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NotFoundText is the sentence the not-found page carries.
const NotFoundText = "The specified profile could not be found."

var profileTmpl = template.Must(template.New("profile").Parse(`<!DOCTYPE html>
<html>
<head><title>Community :: {{.ID}}</title></head>
<body>
  <div class="profile_header">
    <span class="actual_persona_name">{{.ID}}</span>
  </div>
</body>
</html>
`))

var notFoundTmpl = template.Must(template.New("notfound").Parse(`<!DOCTYPE html>
<html>
<head><title>Community :: Error</title></head>
<body>
  <div class="error_ctn">
    <h3>{{.Text}}</h3>
  </div>
</body>
</html>
`))

// Stats counts what the server answered.
type Stats struct {
	Requests    int            `json:"requests"`
	RateLimited int            `json:"rate_limited"`
	PerID       map[string]int `json:"per_id"`
}

// DemoServer mimics a community profile lookup: /id/{id} renders a profile for
// taken ids and an error page for everything else, both with status 200.
type DemoServer struct {
	cfg    Config
	router chi.Router

	mu       sync.Mutex
	taken    map[string]bool
	errorIDs map[string]bool
	stats    Stats
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config) *DemoServer {
	s := &DemoServer{
		cfg:      cfg,
		taken:    make(map[string]bool, len(cfg.Taken)),
		errorIDs: make(map[string]bool, len(cfg.ErrorIDs)),
		stats:    Stats{PerID: map[string]int{}},
	}
	for _, id := range cfg.Taken {
		s.taken[strings.ToLower(id)] = true
	}
	for _, id := range cfg.ErrorIDs {
		s.errorIDs[strings.ToLower(id)] = true
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/id/{id}", s.profileHandler)
	r.Route("/demo", func(r chi.Router) {
		r.Post("/register", s.registerHandler)
		r.Get("/stats", s.statsHandler)
		r.Post("/reset", s.resetHandler)
	})
	s.router = r
	return s
}

// Handler exposes the router, e.g. for httptest.NewServer.
func (s *DemoServer) Handler() http.Handler {
	return s.router
}

// Start starts the demo server.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Demo server starting on http://localhost%s\n", addr)
	fmt.Printf("Profiles at http://localhost%s/id/{id}\n", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *DemoServer) profileHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(chi.URLParam(r, "id"))

	s.mu.Lock()
	s.stats.Requests++
	s.stats.PerID[id]++
	seen := s.stats.PerID[id]
	limited := seen <= s.cfg.RateLimitBurst ||
		(s.cfg.RateLimitEvery > 0 && s.stats.Requests%s.cfg.RateLimitEvery == 0)
	if limited {
		s.stats.RateLimited++
	}
	taken := s.taken[id]
	broken := s.errorIDs[id]
	s.mu.Unlock()

	switch {
	case limited:
		w.Header().Set("Retry-After", "10")
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	case broken:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if taken {
		_ = profileTmpl.Execute(w, struct{ ID string }{chi.URLParam(r, "id")})
		return
	}
	_ = notFoundTmpl.Execute(w, struct{ Text string }{NotFoundText})
}

func (s *DemoServer) registerHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := strings.ToLower(strings.TrimSpace(r.PostForm.Get("id")))
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.taken[id] = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (s *DemoServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Stats())
}

func (s *DemoServer) resetHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.stats = Stats{PerID: map[string]int{}}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// Stats returns a copy of the counters.
func (s *DemoServer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Stats{
		Requests:    s.stats.Requests,
		RateLimited: s.stats.RateLimited,
		PerID:       make(map[string]int, len(s.stats.PerID)),
	}
	for k, v := range s.stats.PerID {
		out.PerID[k] = v
	}
	return out
}
