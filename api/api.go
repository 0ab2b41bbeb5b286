// Package api exposes a Ledger over JSON/HTTP.
//
// Submit and amend answer with a commitment.Result in both the accepted and
// the rejected case, so clients read the same envelope either way:
//
//	{"status":"rejected","kind":"ExceedsFundingGoal","message":"...","retryable":false}
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

// InvestorHeader carries the caller identity when the request body omits it.
// The value is trusted; authenticate upstream.
const InvestorHeader = "X-Investor-ID"

// DefaultRetryAfter is advertised on Busy rejections.
const DefaultRetryAfter = time.Second

const maxBodyBytes = 1 << 20

// API serves the ledger's HTTP surface.
type API struct {
	ledger     *fundledger.Ledger
	logger     *slog.Logger
	retryAfter time.Duration
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger used for internal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithRetryAfter sets the Retry-After hint sent with Busy rejections.
func WithRetryAfter(d time.Duration) Option {
	return func(a *API) { a.retryAfter = d }
}

// New creates an API over l.
func New(l *fundledger.Ledger, opts ...Option) *API {
	a := &API{
		ledger:     l,
		logger:     slog.Default(),
		retryAfter: DefaultRetryAfter,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the routed handler with request-id and panic recovery
// middleware applied.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.health)

	r.Route("/projects", func(r chi.Router) {
		r.Post("/", a.createProject)
		r.Get("/", a.listProjects)

		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", a.getProject)
			r.Get("/total", a.total)
			r.Get("/funding", a.funding)
			r.Get("/commitments", a.listProjectCommitments)
			r.Post("/commitments", a.submitCommitment)
		})
	})

	r.Route("/commitments", func(r chi.Router) {
		r.Get("/", a.listCommitments)
		r.Get("/{commitmentID}", a.getCommitment)
		r.Patch("/{commitmentID}", a.amendCommitment)
	})

	return r
}

// ──────────────────────────────────────────────────
// Requests
// ──────────────────────────────────────────────────

type createProjectRequest struct {
	OwnerID     string            `json:"owner_id"`
	Title       string            `json:"title"`
	Currency    string            `json:"currency"`
	FundingGoal string            `json:"funding_goal"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type submitRequest struct {
	InvestorID string `json:"investor_id"`
	Amount     string `json:"amount"`
}

type amendRequest struct {
	Amount     string `json:"amount"`
	InvestorID string `json:"investor_id,omitempty"`
	ProjectID  string `json:"project_id,omitempty"`
}

type totalResponse struct {
	ProjectID      id.ProjectID `json:"project_id"`
	TotalCommitted types.Money  `json:"total_committed"`
}

type errorResponse struct {
	Kind      commitment.Kind `json:"kind"`
	Message   string          `json:"message"`
	Retryable bool            `json:"retryable,omitempty"`
}

// ──────────────────────────────────────────────────
// Handlers
// ──────────────────────────────────────────────────

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if err := a.ledger.Store().Ping(r.Context()); err != nil {
		a.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !a.decode(w, r, &req) {
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}
	goal, err := fundledger.ParseFundingGoal(req.FundingGoal, currency)
	if err != nil {
		a.writeError(w, err)
		return
	}

	p := &project.Project{
		OwnerID:     req.OwnerID,
		Title:       req.Title,
		FundingGoal: goal,
		Metadata:    req.Metadata,
	}
	if err := a.ledger.CreateProject(r.Context(), p); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := a.page(w, r)
	if !ok {
		return
	}

	projects, err := a.ledger.ListProjects(r.Context(), r.URL.Query().Get("owner_id"), project.ListOpts{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := a.projectID(w, r)
	if !ok {
		return
	}

	p, err := a.ledger.GetProject(r.Context(), projectID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) total(w http.ResponseWriter, r *http.Request) {
	projectID, ok := a.projectID(w, r)
	if !ok {
		return
	}

	total, err := a.ledger.TotalCommitted(r.Context(), projectID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totalResponse{ProjectID: projectID, TotalCommitted: total})
}

func (a *API) funding(w http.ResponseWriter, r *http.Request) {
	projectID, ok := a.projectID(w, r)
	if !ok {
		return
	}

	f, err := a.ledger.Funding(r.Context(), projectID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (a *API) listProjectCommitments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := a.projectID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := a.page(w, r)
	if !ok {
		return
	}

	if _, err := a.ledger.GetProject(r.Context(), projectID); err != nil {
		a.writeError(w, err)
		return
	}

	list, err := a.ledger.ListCommitments(r.Context(), commitment.ListOpts{
		ProjectID: projectID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) listCommitments(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := a.page(w, r)
	if !ok {
		return
	}

	opts := commitment.ListOpts{
		InvestorID: r.URL.Query().Get("investor_id"),
		Limit:      limit,
		Offset:     offset,
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		projectID, err := id.ParseProjectID(raw)
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: project_id: %w", fundledger.ErrInvalidInput, err))
			return
		}
		opts.ProjectID = projectID
	}

	list, err := a.ledger.ListCommitments(r.Context(), opts)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getCommitment(w http.ResponseWriter, r *http.Request) {
	commitmentID, ok := a.commitmentID(w, r)
	if !ok {
		return
	}

	c, err := a.ledger.GetCommitment(r.Context(), commitmentID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) submitCommitment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := a.projectID(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.InvestorID) == "" {
		req.InvestorID = r.Header.Get(InvestorHeader)
	}

	c, err := a.ledger.SubmitCommitment(r.Context(), req.InvestorID, projectID, req.Amount)
	a.writeResult(w, http.StatusCreated, fundledger.Outcome(c, err))
}

func (a *API) amendCommitment(w http.ResponseWriter, r *http.Request) {
	commitmentID, ok := a.commitmentID(w, r)
	if !ok {
		return
	}

	var req amendRequest
	if !a.decode(w, r, &req) {
		return
	}

	change := commitment.Amendment{Amount: req.Amount, InvestorID: req.InvestorID}
	if req.ProjectID != "" {
		projectID, err := id.ParseProjectID(req.ProjectID)
		if err != nil {
			// Any project other than the stored one is a change of an
			// immutable field, including an unparseable one.
			a.writeResult(w, http.StatusOK, fundledger.Outcome(nil, fundledger.ErrImmutableFieldChanged))
			return
		}
		change.ProjectID = projectID
	}

	c, err := a.ledger.AmendCommitmentFields(r.Context(), commitmentID, change)
	a.writeResult(w, http.StatusOK, fundledger.Outcome(c, err))
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (a *API) projectID(w http.ResponseWriter, r *http.Request) (id.ProjectID, bool) {
	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %w", fundledger.ErrProjectNotFound, err))
		return id.Nil, false
	}
	return projectID, true
}

func (a *API) commitmentID(w http.ResponseWriter, r *http.Request) (id.CommitmentID, bool) {
	commitmentID, err := id.ParseCommitmentID(chi.URLParam(r, "commitmentID"))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %w", fundledger.ErrCommitmentNotFound, err))
		return id.Nil, false
	}
	return commitmentID, true
}

func (a *API) page(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	var err error
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			a.writeError(w, fmt.Errorf("%w: limit %q", fundledger.ErrInvalidInput, v))
			return 0, 0, false
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			a.writeError(w, fmt.Errorf("%w: offset %q", fundledger.ErrInvalidInput, v))
			return 0, 0, false
		}
	}
	return limit, offset, true
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.writeError(w, fmt.Errorf("%w: malformed body: %w", fundledger.ErrInvalidInput, err))
		return false
	}
	return true
}

func (a *API) writeResult(w http.ResponseWriter, okStatus int, res commitment.Result) {
	if res.Accepted() {
		writeJSON(w, okStatus, res)
		return
	}

	status := statusFor(res.Kind)
	if res.Kind == commitment.KindInternal {
		a.logger.Error("commitment failed", "kind", res.Kind, "error", res.Message)
		res.Message = http.StatusText(status)
	}
	if res.Retryable {
		a.setRetryAfter(w)
	}
	writeJSON(w, status, res)
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	kind := fundledger.KindOf(err)
	status := statusFor(kind)

	msg := err.Error()
	if kind == commitment.KindInternal {
		a.logger.Error("request failed", "error", err)
		msg = http.StatusText(status)
	}
	if kind.Retryable() {
		a.setRetryAfter(w)
	}

	writeJSON(w, status, errorResponse{Kind: kind, Message: msg, Retryable: kind.Retryable()})
}

func (a *API) setRetryAfter(w http.ResponseWriter) {
	secs := int(a.retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}

// statusFor maps a rejection kind onto an HTTP status.
func statusFor(kind commitment.Kind) int {
	switch kind {
	case commitment.KindAmountRequired,
		commitment.KindAmountInvalid,
		commitment.KindInvalid:
		return http.StatusBadRequest
	case commitment.KindAmountMustBePositive,
		commitment.KindSelfInvestment,
		commitment.KindImmutableFieldChanged:
		return http.StatusUnprocessableEntity
	case commitment.KindExceedsFundingGoal,
		commitment.KindProjectFullyFunded:
		return http.StatusConflict
	case commitment.KindNotFound:
		return http.StatusNotFound
	case commitment.KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
