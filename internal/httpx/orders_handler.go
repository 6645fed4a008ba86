package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/nzoagro/backend/internal/apperr"
	"github.com/nzoagro/backend/internal/auth"
	"github.com/nzoagro/backend/internal/orders"
	"github.com/nzoagro/backend/internal/redisx"
)

type OrdersService interface {
	Criar(ctx context.Context, usuarioID string, end orders.Endereco) (*orders.CriarPedidoResult, error)
	ConfirmarPagamento(ctx context.Context, pedidoID, usuarioID string) error
	Cancelar(ctx context.Context, pedidoID, actorID string, papel auth.Papel) (bool, error)
	Excluir(ctx context.Context, pedidoID, actorID string, papel auth.Papel, justificativa string) error
	Pendentes(ctx context.Context, usuarioID string) ([]orders.PedidoPendente, error)
	Detalhe(ctx context.Context, pedidoID, actorID string, papel auth.Papel) (orders.PedidoDetalhe, error)
	DonoDe(ctx context.Context, pedidoID string) (string, error)
	Disponivel(ctx context.Context, produtoID string) (int, error)
}

type OrdersHandler struct {
	Svc   OrdersService
	Redis *redis.Client
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/pedidos/criar", h.criar)
	r.Get("/pedidos/pendentes", h.pendentes)
	r.Get("/pedidos/{id_pedido}", h.detalhe)
	r.Get("/pedidos/{id_pedido}/estado", h.estado)
	r.Post("/pedidos/confirmar-pagamento/{id_pedido}", h.confirmarPagamento)
	r.Delete("/pedidos/{id_pedido}", h.cancelar)
	r.Delete("/pedidos/{id_pedido}/registro", h.excluir)
	r.Get("/estoque/{produto_id}/disponivel", h.disponivel)
}

func (h *OrdersHandler) criar(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())

	var end orders.Endereco
	if err := json.NewDecoder(r.Body).Decode(&end); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"erro": "json invalido"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.Criar(ctx, usuarioID, end)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheEstado(ctx, res.PedidoID, res.Estado)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id_pedido":       res.PedidoID,
		"status":          res.Estado,
		"dados_pagamento": res.Dados,
	})
}

func (h *OrdersHandler) confirmarPagamento(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())
	pedidoID := chi.URLParam(r, "id_pedido")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.ConfirmarPagamento(ctx, pedidoID, usuarioID); err != nil {
		if apperr.KindOf(err) == apperr.KindExpired {
			h.cacheEstado(ctx, pedidoID, orders.EstadoExpirado)
		}
		writeErr(w, err)
		return
	}

	h.cacheEstado(ctx, pedidoID, orders.EstadoConfirmado)
	writeJSON(w, http.StatusOK, map[string]any{
		"id_pedido":         pedidoID,
		"estado":            orders.EstadoConfirmado,
		"estoque_reservado": true,
	})
}

func (h *OrdersHandler) cancelar(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())
	papel, _ := auth.PapelFrom(r.Context())
	pedidoID := chi.URLParam(r, "id_pedido")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	liberado, err := h.Svc.Cancelar(ctx, pedidoID, usuarioID, papel)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheEstado(ctx, pedidoID, orders.EstadoCancelado)
	writeJSON(w, http.StatusOK, map[string]any{
		"id_pedido":        pedidoID,
		"estoque_liberado": liberado,
	})
}

func (h *OrdersHandler) excluir(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())
	papel, _ := auth.PapelFrom(r.Context())
	pedidoID := chi.URLParam(r, "id_pedido")

	var body struct {
		Justificativa string `json:"justificativa"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Excluir(ctx, pedidoID, usuarioID, papel, body.Justificativa); err != nil {
		writeErr(w, err)
		return
	}

	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyEstadoPedido, pedidoID)).Err()
	writeJSON(w, http.StatusOK, map[string]any{"id_pedido": pedidoID, "excluido": true})
}

func (h *OrdersHandler) pendentes(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pendentes, err := h.Svc.Pendentes(ctx, usuarioID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if pendentes == nil {
		pendentes = []orders.PedidoPendente{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pedidos": pendentes})
}

func (h *OrdersHandler) detalhe(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())
	papel, _ := auth.PapelFrom(r.Context())
	pedidoID := chi.URLParam(r, "id_pedido")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	d, err := h.Svc.Detalhe(ctx, pedidoID, usuarioID, papel)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id_pedido":         d.Pedido.ID,
		"estado":            d.Pedido.Estado,
		"valor_total":       d.Pedido.ValorTotal,
		"subtotal_produtos": d.Pedido.SubtotalProdutos,
		"frete":             d.Pedido.Frete,
		"comissao":          d.Pedido.Comissao,
		"peso_total":        d.Pedido.PesoTotal,
		"criado_em":         d.Pedido.CriadoEm,
		"expira_em":         d.Pedido.ExpiraEm,
		"itens":             d.Itens,
		"endereco":          d.Endereco,
	})
}

// estado serve o cache de estado; no miss cai no detalhe e reaquece.
// O valor cacheado nao carrega o dono, entao a posse e verificada antes
// de qualquer leitura do cache.
func (h *OrdersHandler) estado(w http.ResponseWriter, r *http.Request) {
	usuarioID, _ := auth.UserIDFrom(r.Context())
	papel, _ := auth.PapelFrom(r.Context())
	pedidoID := chi.URLParam(r, "id_pedido")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	donoID, err := h.Svc.DonoDe(ctx, pedidoID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if donoID != usuarioID && !papel.IsAdmin() {
		writeErr(w, apperr.New(apperr.KindNotFound, "pedido nao encontrado"))
		return
	}

	key := fmt.Sprintf(redisx.KeyEstadoPedido, pedidoID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	d, err := h.Svc.Detalhe(ctx, pedidoID, usuarioID, papel)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheEstado(ctx, pedidoID, d.Pedido.Estado)
	writeJSON(w, http.StatusOK, map[string]any{"estado": d.Pedido.Estado})
}

func (h *OrdersHandler) disponivel(w http.ResponseWriter, r *http.Request) {
	produtoID := chi.URLParam(r, "produto_id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Svc.Disponivel(ctx, produtoID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"produto_id":            produtoID,
		"quantidade_disponivel": n,
	})
}

func (h *OrdersHandler) cacheEstado(ctx context.Context, pedidoID string, estado orders.Estado) {
	key := fmt.Sprintf(redisx.KeyEstadoPedido, pedidoID)
	val := fmt.Sprintf(`{"estado":%q}`, estado)
	_ = h.Redis.Set(ctx, key, val, redisx.TTLEstadoCache).Err()
}
