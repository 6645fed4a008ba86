package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nzoagro/backend/internal/auth"
	"github.com/nzoagro/backend/internal/notify"
)

type NotifyStore interface {
	Listar(ctx context.Context, usuarioID string, limit int) ([]notify.Notificacao, error)
	MarcarLida(ctx context.Context, id, usuarioID string) error
	ContarNaoLidas(ctx context.Context, usuarioID string) (int, error)
}

type NotifyHandler struct {
	Store NotifyStore
}

func (h *NotifyHandler) Register(r chi.Router) {
	r.Get("/notificacoes", h.listar)
	r.Put("/notificacoes/{id}/lida", h.marcarLida)
	r.Get("/notificacoes/nao-lidas/contagem", h.contagem)
}

func (h *NotifyHandler) listar(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limite"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ns, err := h.Store.Listar(ctx, usuarioID, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ns == nil {
		ns = []notify.Notificacao{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notificacoes": ns})
}

func (h *NotifyHandler) marcarLida(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.MarcarLida(ctx, id, usuarioID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "lida": true})
}

func (h *NotifyHandler) contagem(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Store.ContarNaoLidas(ctx, usuarioID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nao_lidas": n})
}
