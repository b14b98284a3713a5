package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/roach88/repsync/internal/state"
)

// Route names one endpoint of the fake backend.
type Route string

const (
	RouteGetRoutine Route = "get routine"
	RouteToday      Route = "today"
	RouteWeek       Route = "week"
	RouteToggle     Route = "toggle"
	RouteAdd        Route = "add"
	RouteUpdate     Route = "update"
	RouteDelete     Route = "delete"
	RouteMerge      Route = "merge"
)

type failure struct {
	status  int
	message string
}

// Backend is an in-memory implementation of the routine and cart REST API,
// served by httptest.
//
// Server-assigned exercise IDs count up from 100. Failures can be injected
// per route; each injected failure is consumed by one request.
//
// Thread-safety: all methods are safe for concurrent use.
type Backend struct {
	server *httptest.Server
	store  *state.Store

	mu       sync.Mutex
	today    string
	nextID   int
	failures map[Route][]failure
	hits     map[Route]int
	token    string
}

// NewBackend starts a fake backend holding routines. The server is closed
// when the test ends.
func NewBackend(t testing.TB, routines ...state.Routine) *Backend {
	t.Helper()

	b := &Backend{
		store:    state.New(),
		nextID:   100,
		failures: make(map[Route][]failure),
		hits:     make(map[Route]int),
	}
	for _, r := range routines {
		b.store.PutRoutine(r)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/routines/today", b.handle(RouteToday, b.getToday))
	mux.HandleFunc("GET /api/routines/weekly", b.handle(RouteWeek, b.getWeek))
	mux.HandleFunc("GET /api/routines/{rid}", b.handle(RouteGetRoutine, b.getRoutine))
	mux.HandleFunc("PATCH /api/routines/{rid}/exercises/{eid}/toggle", b.handle(RouteToggle, b.toggle))
	mux.HandleFunc("POST /api/routines/{rid}/exercises", b.handle(RouteAdd, b.add))
	mux.HandleFunc("PUT /api/routines/{rid}/exercises/{eid}", b.handle(RouteUpdate, b.update))
	mux.HandleFunc("DELETE /api/routines/{rid}/exercises/{eid}", b.handle(RouteDelete, b.remove))
	mux.HandleFunc("POST /api/cart/merge", b.handle(RouteMerge, b.merge))

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the base URL of the server.
func (b *Backend) URL() string {
	return b.server.URL
}

// SetToday selects the routine returned by GET /api/routines/today by date.
func (b *Backend) SetToday(date string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.today = date
}

// RequireToken makes every request without "Bearer <token>" fail with 401.
func (b *Backend) RequireToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

// Fail makes the next request to route fail with status and message.
func (b *Backend) Fail(route Route, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = append(b.failures[route], failure{status: status, message: message})
}

// Hits returns how many requests route has received, failed ones included.
func (b *Backend) Hits(route Route) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// Routine returns the server-side copy of a routine.
func (b *Backend) Routine(id state.ID) (state.Routine, bool) {
	return b.store.Routine(id)
}

func (b *Backend) handle(route Route, fn func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[route]++
		token := b.token
		var f *failure
		if queue := b.failures[route]; len(queue) > 0 {
			f = &queue[0]
			b.failures[route] = queue[1:]
		}
		b.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if f != nil {
			writeError(w, f.status, f.message)
			return
		}
		fn(w, r)
	}
}

func (b *Backend) getToday(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	today := b.today
	b.mu.Unlock()

	for _, routine := range b.store.Routines() {
		if routine.Date == today {
			writeJSON(w, http.StatusOK, routine)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) getWeek(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.store.Routines())
}

func (b *Backend) getRoutine(w http.ResponseWriter, r *http.Request) {
	routine, ok := b.store.Routine(state.ID(r.PathValue("rid")))
	if !ok {
		writeError(w, http.StatusNotFound, "routine not found")
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

func (b *Backend) toggle(w http.ResponseWriter, r *http.Request) {
	rid, eid := state.ID(r.PathValue("rid")), state.ID(r.PathValue("eid"))
	ex, err := b.store.Exercise(rid, eid)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	ex.Completed = !ex.Completed
	if err := b.store.ReplaceExercise(rid, ex); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// exerciseRequest is the body of the add and update endpoints. The server
// names the main target "category".
type exerciseRequest struct {
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Sets       int        `json:"sets"`
	Reps       state.Reps `json:"reps"`
	Weight     *float64   `json:"weight"`
	SubTargets []string   `json:"subTargets"`
	OrderIndex *int       `json:"orderIndex"`
}

// assign overwrites the fields of ex the request carries. Absent weight
// clears it.
func (req exerciseRequest) assign(ex state.Exercise) state.Exercise {
	ex.Name = req.Name
	ex.MainTarget = req.Category
	ex.Sets = req.Sets
	ex.Reps = req.Reps
	ex.Weight = req.Weight
	if req.SubTargets != nil {
		ex.SubTargets = req.SubTargets
	}
	if req.OrderIndex != nil {
		ex.OrderIndex = *req.OrderIndex
	}
	return ex
}

func decodeExercise(w http.ResponseWriter, r *http.Request) (exerciseRequest, bool) {
	var req exerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid exercise")
		return req, false
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return req, false
	}
	return req, true
}

func (b *Backend) add(w http.ResponseWriter, r *http.Request) {
	rid := state.ID(r.PathValue("rid"))
	req, ok := decodeExercise(w, r)
	if !ok {
		return
	}
	routine, found := b.store.Routine(rid)
	if !found {
		writeError(w, http.StatusNotFound, "routine not found")
		return
	}

	b.mu.Lock()
	id := state.ID(strconv.Itoa(b.nextID))
	b.nextID++
	b.mu.Unlock()

	req.OrderIndex = nil
	ex := req.assign(state.Exercise{ID: id, OrderIndex: nextOrderIndex(routine)})
	if err := b.store.UpsertExercise(rid, ex); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

func nextOrderIndex(r state.Routine) int {
	next := 0
	for _, ex := range r.Exercises {
		if ex.OrderIndex >= next {
			next = ex.OrderIndex + 1
		}
	}
	return next
}

func (b *Backend) update(w http.ResponseWriter, r *http.Request) {
	rid, eid := state.ID(r.PathValue("rid")), state.ID(r.PathValue("eid"))
	req, ok := decodeExercise(w, r)
	if !ok {
		return
	}
	ex, err := b.store.Exercise(rid, eid)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	ex = req.assign(ex)
	if err := b.store.ReplaceExercise(rid, ex); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (b *Backend) remove(w http.ResponseWriter, r *http.Request) {
	rid, eid := state.ID(r.PathValue("rid")), state.ID(r.PathValue("eid"))
	removed, err := b.store.RemoveExercise(rid, eid)
	if err != nil || !removed {
		writeError(w, http.StatusNotFound, "exercise not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) merge(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
