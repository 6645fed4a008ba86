package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/nzoagro/backend/internal/auth"
	"github.com/nzoagro/backend/internal/delivery"
	"github.com/nzoagro/backend/internal/orders"
	"github.com/nzoagro/backend/internal/redisx"
)

type DeliveryService interface {
	Atribuir(ctx context.Context, transportadoraID string, in delivery.AtribuirInput) (*delivery.Entrega, error)
	IniciarRota(ctx context.Context, pedidoID, transportadoraID string) error
	Finalizar(ctx context.Context, pedidoID, transportadoraID, obsFinais string) error
	CriarFilial(ctx context.Context, transportadoraID, nome, endereco, contacto string) (*delivery.Filial, error)
	Filiais(ctx context.Context, transportadoraID string) ([]delivery.Filial, error)
}

type DeliveryHandler struct {
	Svc   DeliveryService
	Redis *redis.Client
}

func (h *DeliveryHandler) Register(r chi.Router) {
	r.Post("/transportadoras/aceitar-pedido-notificar", h.aceitar)
	r.Put("/transportadoras/iniciar-rota/{pedido_id}", h.iniciarRota)
	r.Put("/transportadoras/finalizar-entrega/{pedido_id}", h.finalizar)
	r.Post("/transportadoras/filiais", h.criarFilial)
	r.Get("/transportadoras/filiais", h.filiais)
}

func (h *DeliveryHandler) aceitar(w http.ResponseWriter, r *http.Request) {
	transpID, _ := auth.UserIDFrom(r.Context())

	var body struct {
		PedidosID        string `json:"pedidos_id"`
		FilialRetiradaID string `json:"filial_retirada_id"`
		Observacoes      string `json:"observacoes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"erro": "json invalido"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	e, err := h.Svc.Atribuir(ctx, transpID, delivery.AtribuirInput{
		PedidoID:    body.PedidosID,
		FilialID:    body.FilialRetiradaID,
		Observacoes: body.Observacoes,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheEstado(ctx, e.PedidoID, orders.EstadoProcessado)
	writeJSON(w, http.StatusCreated, map[string]any{
		"pedido_id": e.PedidoID,
		"estado":    e.Estado,
	})
}

func (h *DeliveryHandler) iniciarRota(w http.ResponseWriter, r *http.Request) {
	transpID, _ := auth.UserIDFrom(r.Context())
	pedidoID := chi.URLParam(r, "pedido_id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.IniciarRota(ctx, pedidoID, transpID); err != nil {
		writeErr(w, err)
		return
	}

	h.cacheEstado(ctx, pedidoID, orders.EstadoEnviado)
	writeJSON(w, http.StatusOK, map[string]any{
		"pedido_id": pedidoID,
		"estado":    delivery.EstadoEmRota,
	})
}

func (h *DeliveryHandler) finalizar(w http.ResponseWriter, r *http.Request) {
	transpID, _ := auth.UserIDFrom(r.Context())
	pedidoID := chi.URLParam(r, "pedido_id")

	var body struct {
		ObservacoesFinais string `json:"observacoes_finais"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Finalizar(ctx, pedidoID, transpID, body.ObservacoesFinais); err != nil {
		writeErr(w, err)
		return
	}

	h.cacheEstado(ctx, pedidoID, orders.EstadoEntregue)
	writeJSON(w, http.StatusOK, map[string]any{
		"pedido_id": pedidoID,
		"estado":    delivery.EstadoEntregue,
	})
}

func (h *DeliveryHandler) criarFilial(w http.ResponseWriter, r *http.Request) {
	transpID, _ := auth.UserIDFrom(r.Context())

	var body struct {
		Nome     string `json:"nome"`
		Endereco string `json:"endereco"`
		Contacto string `json:"contacto"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"erro": "json invalido"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	f, err := h.Svc.CriarFilial(ctx, transpID, body.Nome, body.Endereco, body.Contacto)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *DeliveryHandler) filiais(w http.ResponseWriter, r *http.Request) {
	transpID, _ := auth.UserIDFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	fs, err := h.Svc.Filiais(ctx, transpID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if fs == nil {
		fs = []delivery.Filial{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"filiais": fs})
}

func (h *DeliveryHandler) cacheEstado(ctx context.Context, pedidoID string, estado orders.Estado) {
	key := fmt.Sprintf(redisx.KeyEstadoPedido, pedidoID)
	val := fmt.Sprintf(`{"estado":%q}`, estado)
	_ = h.Redis.Set(ctx, key, val, redisx.TTLEstadoCache).Err()
}
