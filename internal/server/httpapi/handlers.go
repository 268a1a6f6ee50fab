package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/dmitrijs2005/fittrack/internal/server/billing"
	"github.com/gorilla/mux"
)

const maxWebhookBody = 1 << 20

func (s *HTTPServer) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/register
func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	user, err := s.users.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorValidation):
			writeErr(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, common.ErrorAlreadyExists):
			writeErr(w, http.StatusConflict, "username or email already taken")
		default:
			writeErr(w, http.StatusInternalServerError, "internal error, try again")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// POST /api/login
func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	sess, err := s.users.Login(r.Context(), in.Identifier, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRateLimited):
			writeErr(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		case errors.Is(err, common.ErrorUnauthorized):
			writeErr(w, http.StatusUnauthorized, "invalid credentials")
		default:
			writeErr(w, http.StatusInternalServerError, "internal error, try again")
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      toUserResponse(sess.User),
	})
}

// GET /api/me
func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// GET /api/media
func (s *HTTPServer) listMedia(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	items, exp, err := s.media.List(r.Context(), user.ID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error, try again")
		return
	}

	resp := mediaListResponse{Items: make([]mediaItemResponse, 0, len(items)), ExpiresAt: exp}
	for _, it := range items {
		resp.Items = append(resp.Items, mediaItemResponse{
			ID:          it.ID,
			ContentType: it.ContentType,
			URL:         it.URL,
			CreatedAt:   it.CreatedAt,
		})
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// GET /media/{id}?token=
func (s *HTTPServer) openMedia(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}

	target, err := s.media.Open(r.Context(), r.URL.Query().Get(common.MediaTokenQueryParam), id)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorUnauthorized):
			writeErr(w, http.StatusUnauthorized, "unauthorized")
		case errors.Is(err, common.ErrorNotFound):
			writeErr(w, http.StatusNotFound, "not found")
		default:
			writeErr(w, http.StatusInternalServerError, "internal error, try again")
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	http.Redirect(w, r, target, http.StatusFound)
}

// POST /webhooks/billing
func (s *HTTPServer) billingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "unreadable body")
		return
	}

	outcome, err := s.billing.Handle(r.Context(), payload, r.Header.Get(common.BillingSignatureHeaderName))
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			writeErr(w, http.StatusBadRequest, "invalid signature")
			return
		}
		writeErr(w, http.StatusInternalServerError, "temporary failure")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": outcome.String()})
}
