// Package assignapi serves the assignment backend and user directory API
// that operator boards call through assignclient.
package assignapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/assignhub/internal/app/store/audit"
	"github.com/dalemusser/assignhub/internal/app/store/productassign"
	userstore "github.com/dalemusser/assignhub/internal/app/store/users"
	"github.com/dalemusser/assignhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/assignhub/internal/app/system/normalize"
	"github.com/dalemusser/assignhub/internal/app/system/paging"
	"github.com/dalemusser/assignhub/internal/app/system/ratelimit"
	"github.com/dalemusser/assignhub/internal/app/system/reconcile"
	"github.com/dalemusser/assignhub/internal/app/system/timeouts"
	"github.com/dalemusser/assignhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgAssigned      = "Product assigned successfully"
	msgUserNotFound  = "User not found"
	msgMissingFields = "productId and userId are required"
	msgInvalidUserID = "userId is not a valid id"
	maxRequestBody   = 1 << 20
)

// Assignments is the product assignment storage the API needs.
type Assignments interface {
	Assign(ctx context.Context, a models.ProductAssignment) (models.ProductAssignment, error)
	ListByProduct(ctx context.Context, productID string) ([]models.ProductAssignment, error)
}

// Users is the directory storage the API needs.
type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
	List(ctx context.Context, page, limit int) ([]models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
}

// Audit records backend actions and serves per-product history.
type Audit interface {
	Log(ctx context.Context, event audit.Event) error
	ByProduct(ctx context.Context, productID string, limit int64) ([]audit.Event, error)
}

// Handler serves the backend API.
type Handler struct {
	Assignments Assignments
	Users       Users
	Audit       Audit // optional
	Log         *zap.Logger
}

// NewHandler creates a new API handler. auditLog may be nil.
func NewHandler(assignments Assignments, users Users, auditLog Audit, logger *zap.Logger) *Handler {
	return &Handler{Assignments: assignments, Users: users, Audit: auditLog, Log: logger}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type userJSON struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Image   string `json:"image,omitempty"`
	Address string `json:"address,omitempty"`
}

func toUserJSON(u models.User) userJSON {
	return userJSON{
		ID:      u.ID.Hex(),
		Name:    u.FullName,
		Email:   u.Email,
		Phone:   u.Phone,
		Image:   u.Image,
		Address: u.Address,
	}
}

type assignmentJSON struct {
	ID        string    `json:"_id"`
	ProductID string    `json:"productId"`
	User      userJSON  `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListUsers handles GET /users?page=&limit=.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := paging.ParsePage(r)
	limit := paging.ParseLimit(r, paging.DirectoryLimit)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list users")
	defer cancel()

	users, err := h.Users.List(ctx, page, limit)
	if err != nil {
		h.Log.Error("list users failed", zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, envelope{Message: "Failed to load users"})
		return
	}

	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toUserJSON(u))
	}
	writeEnvelope(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]any{"result": out, "page": page, "limit": limit},
	})
}

type createUserRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Image   string `json:"image"`
	Address string `json:"address"`
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}
	htmlsanitize.Fields{Name: &req.Name, Email: &req.Email, Phone: &req.Phone, Image: &req.Image, Address: &req.Address}.Apply()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "create user")
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		FullName: req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Image:    req.Image,
		Address:  req.Address,
	})
	switch {
	case err == nil:
		h.record(r, audit.Event{
			Category:  audit.CategoryDirectory,
			EventType: audit.EventUserCreated,
			UserID:    &u.ID,
			Success:   true,
		})
		writeEnvelope(w, http.StatusCreated, envelope{Success: true, Data: toUserJSON(u)})
	case errors.Is(err, userstore.ErrDuplicateEmail):
		writeEnvelope(w, http.StatusConflict, envelope{Message: err.Error()})
	case userstore.IsValidation(err):
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: err.Error()})
	default:
		h.Log.Error("create user failed", zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, envelope{Message: "Failed to create user"})
	}
}

// AssignedUsers handles GET /assign-product/get-assigned-users/{productId}.
// Assignments whose user no longer exists are omitted.
func (h *Handler) AssignedUsers(w http.ResponseWriter, r *http.Request) {
	productID := normalize.ID(chi.URLParam(r, "productId"))
	if productID == "" {
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: "productId is required"})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "assigned users")
	defer cancel()

	list, err := h.Assignments.ListByProduct(ctx, productID)
	if err != nil {
		h.Log.Error("list assignments failed", zap.String("product_id", productID), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, envelope{Message: "Failed to load assigned users"})
		return
	}

	ids := make([]primitive.ObjectID, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.UserID)
	}
	users, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		h.Log.Error("load assigned users failed", zap.String("product_id", productID), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, envelope{Message: "Failed to load assigned users"})
		return
	}

	out := make([]assignmentJSON, 0, len(list))
	for _, a := range list {
		u, ok := users[a.UserID]
		if !ok {
			continue
		}
		out = append(out, assignmentJSON{
			ID:        a.ID.Hex(),
			ProductID: a.ProductID,
			User:      toUserJSON(u),
			CreatedAt: a.CreatedAt,
		})
	}
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: out})
}

type assignRequest struct {
	ProductID string `json:"productId"`
	UserID    string `json:"userId"`
}

// Assign handles POST /assign-product/assign. An existing assignment is
// answered with 400 and the duplicate message.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(w, r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}
	productID, userID := normalize.ID(req.ProductID), normalize.ID(req.UserID)
	if productID == "" || userID == "" {
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: msgMissingFields})
		return
	}
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: msgInvalidUserID})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "assign product")
	defer cancel()

	if _, err := h.Users.GetByID(ctx, oid); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			writeEnvelope(w, http.StatusNotFound, envelope{Message: msgUserNotFound})
			return
		}
		h.Log.Error("load user failed", zap.String("user_id", userID), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, envelope{Message: "Failed to assign product"})
		return
	}

	a, err := h.Assignments.Assign(ctx, models.ProductAssignment{ProductID: productID, UserID: oid})
	switch {
	case err == nil:
		h.Log.Info("product assigned",
			zap.String("product_id", productID), zap.String("user_id", userID))
		h.record(r, audit.Event{
			Category:  audit.CategoryAssignment,
			EventType: audit.EventProductAssigned,
			ProductID: productID,
			UserID:    &oid,
			Success:   true,
		})
		writeEnvelope(w, http.StatusCreated, envelope{
			Success: true,
			Message: msgAssigned,
			Data: map[string]any{
				"_id":       a.ID.Hex(),
				"productId": a.ProductID,
				"userId":    a.UserID.Hex(),
				"createdAt": a.CreatedAt,
			},
		})
	case errors.Is(err, productassign.ErrAlreadyAssigned):
		h.record(r, audit.Event{
			Category:      audit.CategoryAssignment,
			EventType:     audit.EventProductAssignRejected,
			ProductID:     productID,
			UserID:        &oid,
			FailureReason: reconcile.DuplicateMessage,
		})
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: reconcile.DuplicateMessage})
	default:
		h.Log.Error("assign product failed",
			zap.String("product_id", productID), zap.String("user_id", userID), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, envelope{Message: "Failed to assign product"})
	}
}

// History handles GET /assign-product/history/{productId}?limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	productID := normalize.ID(chi.URLParam(r, "productId"))
	if productID == "" {
		writeEnvelope(w, http.StatusBadRequest, envelope{Message: "productId is required"})
		return
	}
	if h.Audit == nil {
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: []audit.Event{}})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "assignment history")
	defer cancel()

	events, err := h.Audit.ByProduct(ctx, productID, int64(paging.ParseLimit(r, audit.DefaultLimit)))
	if err != nil {
		h.Log.Error("load assignment history failed", zap.String("product_id", productID), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, envelope{Message: "Failed to load history"})
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: events})
}

// RecordAuthFailure logs a rejected bearer token as a security event.
func (h *Handler) RecordAuthFailure(r *http.Request) {
	h.record(r, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventAPIAuthFailed,
		FailureReason: "invalid bearer token",
		Details:       map[string]string{"path": r.URL.Path},
	})
}

// record writes an audit event. Failures are logged and never reach the caller.
func (h *Handler) record(r *http.Request, e audit.Event) {
	if h.Audit == nil {
		return
	}
	e.IP = ratelimit.ClientIP(r)
	e.UserAgent = r.UserAgent()

	ctx, cancel := timeouts.WithTimeout(context.WithoutCancel(r.Context()), timeouts.Short(), h.Log, "audit log")
	defer cancel()
	if err := h.Audit.Log(ctx, e); err != nil {
		h.Log.Warn("audit log failed", zap.String("event_type", e.EventType), zap.Error(err))
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
