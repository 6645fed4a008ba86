package redisx

import "time"

const (
	// Cache do estado do pedido: estado_pedido:{pedido_id} -> {"estado": "..."}
	KeyEstadoPedido = "estado_pedido:%s"

	// Dedup de eventos no notifier: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLEstadoCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
