package subscription

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// webhookAck is the literal acknowledgement body the provider expects on a
// handled notification.
const webhookAck = "WebHook OK: Mobbex Subscriptions Bridge v" + Version

// Handler exposes the reconciliation service over HTTP.
type Handler struct {
	service *Service
	log     *slog.Logger
}

// NewHandler creates the webhook HTTP handler. Panics on a nil service.
func NewHandler(service *Service, log *slog.Logger) *Handler {
	if service == nil {
		panic("subscription: Service is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: service, log: log}
}

// Routes mounts the webhook endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhook", h.handleWebhook)
	return r
}

// handleWebhook receives a provider notification, reconciles it and answers
// with the acknowledgement literal. Duplicate registrations are acknowledged
// like successes so provider retries do not storm.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := h.parseBody(r)
	if err != nil {
		h.log.WarnContext(ctx, "unparseable webhook body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Token and order id arrive as query parameters on the webhook URL the
	// provider was handed, or as form fields on older integrations.
	token := requestValue(r, "mobbex_token")
	orderID := requestValue(r, "mobbex_order_id")
	if orderID == "" {
		orderID = requestValue(r, "order_id")
	}

	_, err = h.service.Reconcile(ctx, token, payload.Type, payload, orderID)
	switch {
	case err == nil, errors.Is(err, ErrDuplicateRegistration):
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, webhookAck)
	case errors.Is(err, ErrInvalidNotification):
		h.log.WarnContext(ctx, "invalid webhook rejected", "order_id", orderID, "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
	case errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, ErrSubscriberNotFound),
		errors.Is(err, ErrNoSubscriptionOrder):
		h.log.WarnContext(ctx, "webhook references unknown records", "order_id", orderID, "error", err)
		http.Error(w, "not found", http.StatusNotFound)
	default:
		h.log.ErrorContext(ctx, "webhook reconciliation failed", "order_id", orderID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func requestValue(r *http.Request, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	// Populated only when parseBody went through ParseForm.
	return r.PostForm.Get(key)
}

func (h *Handler) parseBody(r *http.Request) (*Notification, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return ParseNotificationForm(r.PostForm)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return ParseNotification(body)
}
