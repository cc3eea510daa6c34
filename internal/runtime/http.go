package runtime

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/loqalabs/loqa-scribe/internal/app"
	"github.com/loqalabs/loqa-scribe/internal/capture"
	"github.com/loqalabs/loqa-scribe/internal/display"
	"github.com/loqalabs/loqa-scribe/internal/eventstore"
	"github.com/loqalabs/loqa-scribe/internal/recorder"
	"github.com/loqalabs/loqa-scribe/internal/ui"
)

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    {{if .Busy}}<meta http-equiv="refresh" content="1">{{end}}
    <title>{{.Title}}</title>
</head>
<body>
    <main id="app">
        <div id="output">{{.Output}}</div>
        {{if .Sending}}
        <progress id="sending"></progress>
        {{else}}
        <form method="post" action="/record">
            <button type="submit" id="record" class="mic mic-{{.Affordance}}" aria-label="{{.Affordance}}">{{.Affordance}}</button>
        </form>
        {{end}}
    </main>
</body>
</html>
`))

type page struct {
	Title      string
	Output     template.HTML
	Affordance recorder.Affordance
	Busy       bool
	Sending    bool
}

// stateResponse is the JSON snapshot of the UI.
type stateResponse struct {
	SessionID  string              `json:"session_id,omitempty"`
	State      ui.State            `json:"state"`
	Affordance recorder.Affordance `json:"affordance"`
	Text       string              `json:"text"`
}

type server struct {
	title   string
	ctrl    *app.Controller
	store   *eventstore.Store
	metrics http.Handler
	ready   func() bool
	logger  *slog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /record", s.handleAction(s.toggle))
	mux.HandleFunc("POST /record/start", s.handleAction(s.start))
	mux.HandleFunc("POST /record/stop", s.handleAction(s.stop))
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleSessionEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

func (s *server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	state := s.ctrl.State()
	output, err := display.HTML(state)
	if err != nil {
		s.logger.Error("failed to render output", slogError(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	p := page{
		Title:      s.title,
		Output:     output,
		Affordance: s.ctrl.Affordance(),
		Busy:       state.Kind == ui.KindListening || state.Kind == ui.KindSending,
		Sending:    state.Kind == ui.KindSending,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, p); err != nil {
		s.logger.Error("failed to execute template", slogError(err))
	}
}

func (s *server) toggle(r *http.Request) error { return s.ctrl.Toggle(r.Context()) }
func (s *server) start(r *http.Request) error { return s.ctrl.Start(r.Context()) }
func (s *server) stop(*http.Request) error { return s.ctrl.Stop() }

// handleAction runs a recorder action. Browsers posting the page form are
// redirected back to it; API clients get the resulting state.
func (s *server) handleAction(action func(*http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := action(r)
		if errors.Is(err, capture.ErrInvalidState) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		// Capture failures are already reflected in the Error state.
		if err != nil {
			s.logger.Warn("recorder action failed", slog.String("path", r.URL.Path), slogError(err))
		}
		if wantsHTML(r) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, s.snapshot())
	}
}

func (s *server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *server) snapshot() stateResponse {
	state := s.ctrl.State()
	return stateResponse{
		SessionID:  s.ctrl.SessionID(),
		State:      state,
		Affordance: s.ctrl.Affordance(),
		Text:       display.Text(state),
	}
}

func (s *server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context(), queryInt(r, "limit"))
	if err != nil {
		s.logger.Error("failed to list sessions", slogError(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []eventstore.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	events, err := s.store.ListSessionEvents(r.Context(), id, queryInt(r, "limit"))
	if err != nil {
		s.logger.Error("failed to list session events", slog.String("session_id", id), slogError(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if len(events) == 0 {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
