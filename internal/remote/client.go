// Package remote is the HTTP client for the routine and cart backend.
//
// Every call returns either the parsed success payload or a *Error carrying
// the status code and the server's message. The client makes exactly one
// attempt per call; retry policy is left to the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/repsync/internal/state"
)

// DefaultTimeout bounds a single request when the caller's context has no
// deadline of its own.
const DefaultTimeout = 10 * time.Second

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithCookieJar stores cookies the server sets and sends them back. The
// cart merge endpoint identifies the guest cart by a cookie.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.http.Jar = jar
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a Client for the API rooted at baseURL (e.g.
// "http://localhost:8080"). Paths such as "/api/routines" are appended.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRoutine fetches one routine by ID.
func (c *Client) GetRoutine(ctx context.Context, routineID state.ID) (state.Routine, error) {
	var r state.Routine
	err := c.do(ctx, "get routine", http.MethodGet, "/api/routines/"+url.PathEscape(routineID.String()), nil, &r)
	return r, err
}

// GetToday fetches today's routine. Returns a nil routine when the server has
// none for today (204 or null body).
func (c *Client) GetToday(ctx context.Context) (*state.Routine, error) {
	var r *state.Routine
	err := c.do(ctx, "get today routine", http.MethodGet, "/api/routines/today", nil, &r)
	return r, err
}

// GetWeek fetches the routines of the current week.
func (c *Client) GetWeek(ctx context.Context) ([]state.Routine, error) {
	var rs []state.Routine
	err := c.do(ctx, "get weekly routines", http.MethodGet, "/api/routines/weekly", nil, &rs)
	return rs, err
}

// ToggleCompleted flips the completed flag of an exercise server-side and
// returns the confirmed exercise.
func (c *Client) ToggleCompleted(ctx context.Context, routineID, exerciseID state.ID) (state.Exercise, error) {
	var ex state.Exercise
	err := c.do(ctx, "toggle exercise", http.MethodPatch, exercisePath(routineID, exerciseID)+"/toggle", nil, &ex)
	return ex, err
}

// exerciseRequest is the body of the add and update endpoints. The server
// calls the main target "category" and stores reps as an integer when it
// can, so integral reps are sent as a number.
type exerciseRequest struct {
	Name       string   `json:"name"`
	Category   string   `json:"category,omitempty"`
	Sets       int      `json:"sets"`
	Reps       any      `json:"reps"`
	Weight     *float64 `json:"weight"`
	SubTargets []string `json:"subTargets,omitempty"`
	OrderIndex *int     `json:"orderIndex,omitempty"`
}

func newExerciseRequest(ex state.Exercise) exerciseRequest {
	req := exerciseRequest{
		Name:       ex.Name,
		Category:   ex.MainTarget,
		Sets:       ex.Sets,
		Reps:       string(ex.Reps),
		Weight:     ex.Weight,
		SubTargets: ex.SubTargets,
	}
	if n, ok := ex.Reps.Int(); ok {
		req.Reps = n
	} else if ex.Reps == "" {
		req.Reps = nil
	}
	return req
}

// AddExercise creates an exercise. The draft's ID and position are not
// sent; the server assigns an ID and appends the exercise.
func (c *Client) AddExercise(ctx context.Context, routineID state.ID, draft state.Exercise) (state.Exercise, error) {
	var ex state.Exercise
	err := c.do(ctx, "add exercise", http.MethodPost, routinePath(routineID)+"/exercises", newExerciseRequest(draft), &ex)
	return ex, err
}

// UpdateExercise replaces the editable fields of an exercise with those of
// ex and returns the confirmed exercise. The server overwrites every field,
// so ex must be complete, e.g. a patch applied to the current value.
func (c *Client) UpdateExercise(ctx context.Context, routineID, exerciseID state.ID, ex state.Exercise) (state.Exercise, error) {
	req := newExerciseRequest(ex)
	idx := ex.OrderIndex
	req.OrderIndex = &idx
	var out state.Exercise
	err := c.do(ctx, "update exercise", http.MethodPut, exercisePath(routineID, exerciseID), req, &out)
	return out, err
}

// DeleteExercise removes an exercise.
func (c *Client) DeleteExercise(ctx context.Context, routineID, exerciseID state.ID) error {
	return c.do(ctx, "delete exercise", http.MethodDelete, exercisePath(routineID, exerciseID), nil, nil)
}

// MergeCart merges the anonymous session's cart into the member cart.
// The endpoint is idempotent.
func (c *Client) MergeCart(ctx context.Context) error {
	return c.do(ctx, "merge cart", http.MethodPost, "/api/cart/merge", nil, nil)
}

func routinePath(routineID state.ID) string {
	return "/api/routines/" + url.PathEscape(routineID.String())
}

func exercisePath(routineID, exerciseID state.ID) string {
	return routinePath(routineID) + "/exercises/" + url.PathEscape(exerciseID.String())
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do performs one request. in is JSON-encoded when non-nil; out is decoded
// from a 2xx body when non-nil and the body is not empty.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Message: "encode request", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return statusError(op, resp.StatusCode, msg)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("decode %s response", op), Err: err}
	}
	return nil
}
