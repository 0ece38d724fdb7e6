package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"loankyc/internal/kyc/callback"
	"loankyc/internal/kyc/methods"
	"loankyc/internal/kyc/models"
	"loankyc/internal/kyc/service"
	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
	"loankyc/pkg/platform/audit"
	"loankyc/pkg/platform/httputil"
	"loankyc/pkg/requestcontext"
)

// Service is the application-session API the handler exposes over HTTP.
type Service interface {
	Methods() []methods.Descriptor
	CreateApplication(ctx context.Context, primaryName string) (*service.View, error)
	Get(ctx context.Context, applicationID id.ApplicationID) (*service.View, error)
	Status(ctx context.Context, applicationID id.ApplicationID) (map[id.ApplicantID]models.State, bool, error)
	AddCoApplicant(ctx context.Context, applicationID id.ApplicationID, name string) (models.Applicant, error)
	RemoveApplicant(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID) (*service.View, error)
	Select(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID) (models.Applicant, error)
	StartVerification(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID, methodID string, inputs map[string]string) (id.AttemptID, models.Applicant, error)
	ResetVerification(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID) (models.Applicant, error)
	CompleteVerification(ctx context.Context, applicationID id.ApplicationID, applicantID id.ApplicantID, outcome models.Outcome) (bool, error)
	AuditTrail(ctx context.Context, applicationID id.ApplicationID) ([]audit.Event, error)
}

// CallbackVerifier authenticates provider callback tokens. *callback.Tokens satisfies it.
type CallbackVerifier interface {
	Verify(token string) (*callback.Grant, error)
}

// Handler wires loan application endpoints to the session service.
type Handler struct {
	service   Service
	callbacks CallbackVerifier
	logger    *slog.Logger
}

// New builds the handler. Without a verifier every provider callback is refused.
func New(service Service, callbacks CallbackVerifier, logger *slog.Logger) *Handler {
	return &Handler{service: service, callbacks: callbacks, logger: logger}
}

// Register mounts the KYC endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/methods", h.HandleListMethods)
	r.Post("/applications", h.HandleCreateApplication)
	r.Route("/applications/{applicationID}", func(r chi.Router) {
		r.Get("/", h.HandleGetApplication)
		r.Get("/status", h.HandleGetStatus)
		r.Get("/audit", h.HandleGetAudit)
		r.Put("/selection", h.HandleSelectApplicant)
		r.Post("/applicants", h.HandleAddApplicant)
		r.Route("/applicants/{applicantID}", func(r chi.Router) {
			r.Delete("/", h.HandleRemoveApplicant)
			r.Post("/verification", h.HandleStartVerification)
			r.Post("/verification/reset", h.HandleResetVerification)
			r.Post("/verification/callback", h.HandleVerificationCallback)
		})
	})
}

// HandleListMethods handles GET /methods.
func (h *Handler) HandleListMethods(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, MethodsResponse{Methods: h.service.Methods()})
}

// HandleCreateApplication handles POST /applications.
func (h *Handler) HandleCreateApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateApplicationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	view, err := h.service.CreateApplication(ctx, req.PrimaryName)
	if err != nil {
		h.fail(ctx, w, "create application failed", err)
		return
	}
	h.logger.InfoContext(ctx, "application created",
		"request_id", requestID,
		"application_id", view.Snapshot.ApplicationID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, toApplicationResponse(view))
}

// HandleGetApplication handles GET /applications/{applicationID}.
func (h *Handler) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(ctx, applicationID)
	if err != nil {
		h.fail(ctx, w, "get application failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(view))
}

// HandleGetStatus handles GET /applications/{applicationID}/status.
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	status, ready, err := h.service.Status(ctx, applicationID)
	if err != nil {
		h.fail(ctx, w, "get status failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Applicants: statusStrings(status), Ready: ready})
}

// HandleGetAudit handles GET /applications/{applicationID}/audit.
func (h *Handler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	events, err := h.service.AuditTrail(ctx, applicationID)
	if err != nil {
		h.fail(ctx, w, "list audit events failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditResponse{Events: events})
}

// HandleAddApplicant handles POST /applications/{applicationID}/applicants.
func (h *Handler) HandleAddApplicant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	applicationID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddApplicantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	applicant, err := h.service.AddCoApplicant(ctx, applicationID, req.Name)
	if err != nil {
		h.fail(ctx, w, "add co-applicant failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toApplicantResponse(applicant))
}

// HandleRemoveApplicant handles DELETE /applications/{applicationID}/applicants/{applicantID}.
func (h *Handler) HandleRemoveApplicant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, applicantID, ok := h.applicantPath(w, r)
	if !ok {
		return
	}
	view, err := h.service.RemoveApplicant(ctx, applicationID, applicantID)
	if err != nil {
		h.fail(ctx, w, "remove applicant failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(view))
}

// HandleSelectApplicant handles PUT /applications/{applicationID}/selection.
func (h *Handler) HandleSelectApplicant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	applicationID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SelectApplicantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	applicant, err := h.service.Select(ctx, applicationID, req.parsedApplicantID)
	if err != nil {
		h.fail(ctx, w, "select applicant failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicantResponse(applicant))
}

// HandleStartVerification handles
// POST /applications/{applicationID}/applicants/{applicantID}/verification.
func (h *Handler) HandleStartVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	applicationID, applicantID, ok := h.applicantPath(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[StartVerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	attemptID, applicant, err := h.service.StartVerification(ctx, applicationID, applicantID, req.Method, req.Inputs)
	if err != nil {
		h.fail(ctx, w, "start verification failed", err)
		return
	}
	h.logger.InfoContext(ctx, "verification started",
		"request_id", requestID,
		"application_id", applicationID.String(),
		"applicant_id", applicantID.String(),
		"method", req.Method,
		"state", applicant.State(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, VerificationStartedResponse{
		AttemptID: attemptID.String(),
		Applicant: toApplicantResponse(applicant),
	})
}

// HandleResetVerification handles
// POST /applications/{applicationID}/applicants/{applicantID}/verification/reset.
func (h *Handler) HandleResetVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, applicantID, ok := h.applicantPath(w, r)
	if !ok {
		return
	}
	applicant, err := h.service.ResetVerification(ctx, applicationID, applicantID)
	if err != nil {
		h.fail(ctx, w, "reset verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicantResponse(applicant))
}

// HandleVerificationCallback handles
// POST /applications/{applicationID}/applicants/{applicantID}/verification/callback.
// The provider authenticates with the bearer token issued for the attempt; a
// token for another attempt, applicant, or application is refused with 403.
// Stale and duplicate callbacks answer 200 with applied=false.
func (h *Handler) HandleVerificationCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	applicationID, applicantID, ok := h.applicantPath(w, r)
	if !ok {
		return
	}
	grant, err := h.verifyCallback(r)
	if err != nil {
		h.fail(ctx, w, "unauthorized verification callback", err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CallbackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if grant.ApplicationID != applicationID || grant.ApplicantID != applicantID || grant.AttemptID != req.parsedAttemptID {
		h.fail(ctx, w, "verification callback outside its grant",
			dErrors.New(dErrors.CodeForbidden, "callback token was not issued for this attempt"))
		return
	}
	applied, err := h.service.CompleteVerification(ctx, applicationID, applicantID, req.Outcome())
	if err != nil {
		h.fail(ctx, w, "verification callback failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CallbackResponse{Applied: applied})
}

func (h *Handler) verifyCallback(r *http.Request) (*callback.Grant, error) {
	const bearerPrefix = "Bearer "
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok || token == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing callback token")
	}
	if h.callbacks == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "provider callbacks are not enabled")
	}
	return h.callbacks.Verify(token)
}

func (h *Handler) applicationID(w http.ResponseWriter, r *http.Request) (id.ApplicationID, bool) {
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, false
	}
	return applicationID, true
}

func (h *Handler) applicantPath(w http.ResponseWriter, r *http.Request) (id.ApplicationID, id.ApplicantID, bool) {
	applicationID, ok := h.applicationID(w, r)
	if !ok {
		return id.ApplicationID{}, id.ApplicantID{}, false
	}
	applicantID, err := id.ParseApplicantID(chi.URLParam(r, "applicantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, id.ApplicantID{}, false
	}
	return applicationID, applicantID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
