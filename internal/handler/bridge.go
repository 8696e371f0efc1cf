package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wavelink/bridge-server-go/internal/delivery"
	apperrors "github.com/wavelink/bridge-server-go/internal/errors"
	"github.com/wavelink/bridge-server-go/internal/model"
	"github.com/wavelink/bridge-server-go/internal/persist"
	"github.com/wavelink/bridge-server-go/internal/registry"
	"github.com/wavelink/bridge-server-go/internal/session"
)

// BridgeHandler exposes the session control API. Authentication is the
// deployment's concern; this surface assumes a trusted caller.
type BridgeHandler struct {
	manager   *session.Manager
	registry  *registry.Registry
	persister *persist.Service
}

func NewBridgeHandler(manager *session.Manager, reg *registry.Registry, persister *persist.Service) *BridgeHandler {
	return &BridgeHandler{
		manager:   manager,
		registry:  reg,
		persister: persister,
	}
}

func (h *BridgeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Post("/reset-all", h.ResetAll)
	r.Post("/reset-user/{ownerId}", h.ResetUser)
	r.Post("/save", h.SaveAll)
	r.Delete("/force/{id}", h.ForceDestroy)
	r.Get("/{id}/status", h.GetStatus)
	r.Get("/{id}/qr", h.GetQR)
	r.Post("/{id}/send", h.Send)
	r.Post("/{id}/save", h.SaveOne)
	r.Delete("/{id}", h.Destroy)

	return r
}

type createSessionRequest struct {
	SessionID string `json:"sessionId"`
	OwnerID   int64  `json:"ownerId"`
}

// POST /v1/bridge/sessions
func (h *BridgeHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	s, err := h.manager.Create(req.SessionID, req.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"sessionId": s.SessionID,
		"status":    s.Status,
	})
}

// GET /v1/bridge/sessions/{id}/status
func (h *BridgeHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GET /v1/bridge/sessions/{id}/qr
func (h *BridgeHandler) GetQR(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	qr, err := h.manager.QRCode(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": sessionID,
		"qrCode":    qr,
	})
}

type sendRequest struct {
	To       string              `json:"to"`
	Message  string              `json:"message,omitempty"`
	MediaURL string              `json:"mediaUrl,omitempty"`
	Products []model.ProductItem `json:"products,omitempty"`
}

// POST /v1/bridge/sessions/{id}/send
func (h *BridgeHandler) Send(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.To == "" {
		writeError(w, apperrors.MissingRequired("to"))
		return
	}
	if req.Message == "" && req.MediaURL == "" && len(req.Products) == 0 {
		writeError(w, apperrors.MissingRequired("message"))
		return
	}

	var payload model.Payload
	switch {
	case len(req.Products) > 0:
		payload = model.ProductBatchPayload(req.Products)
	case req.MediaURL != "":
		payload = model.MediaRefPayload(req.MediaURL)
	default:
		payload = delivery.Classify(req.Message)
	}

	result, err := h.manager.Send(sessionID, req.To, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DELETE /v1/bridge/sessions/{id}
func (h *BridgeHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	h.destroy(w, r, false)
}

// DELETE /v1/bridge/sessions/force/{id}
func (h *BridgeHandler) ForceDestroy(w http.ResponseWriter, r *http.Request) {
	h.destroy(w, r, true)
}

func (h *BridgeHandler) destroy(w http.ResponseWriter, r *http.Request, force bool) {
	sessionID := chi.URLParam(r, "id")
	if err := h.manager.Destroy(r.Context(), sessionID, force); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"destroyed": true,
	})
}

// POST /v1/bridge/sessions/reset-all
func (h *BridgeHandler) ResetAll(w http.ResponseWriter, r *http.Request) {
	count := h.manager.DestroyAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"destroyedCount": count})
}

// POST /v1/bridge/sessions/reset-user/{ownerId}
func (h *BridgeHandler) ResetUser(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(chi.URLParam(r, "ownerId"), 10, 64)
	if err != nil || ownerID <= 0 {
		writeError(w, apperrors.InvalidInput("ownerId", "must be a positive integer"))
		return
	}
	count := h.manager.DestroyAllForOwner(r.Context(), ownerID)
	writeJSON(w, http.StatusOK, map[string]int{"destroyedCount": count})
}

// POST /v1/bridge/sessions/save
func (h *BridgeHandler) SaveAll(w http.ResponseWriter, r *http.Request) {
	saved, err := h.persister.SaveAll(r.Context(), h.registry.ListAll())
	if err != nil {
		log.Error().Err(err).Msg("bulk snapshot failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"savedCount": saved})
}

// POST /v1/bridge/sessions/{id}/save
func (h *BridgeHandler) SaveOne(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	s, err := h.manager.Status(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.persister.SaveOne(r.Context(), s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
