package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/nzoagro/backend/internal/kafka"
)

// Topico unico de notificacoes; particionado pelo usuario destinatario
// para manter a ordem das notificacoes de cada usuario.
const TopicNotificacoes = "notificacoes.enviar"

// Categorias de evento do ciclo de vida.
const (
	EventPedidoCriado         = "pedido_criado"
	EventPagamentoConfirmado  = "pagamento_confirmado"
	EventNovoPedidoConfirmado = "novo_pedido_confirmado"
	EventPedidoCancelado      = "pedido_cancelado"
	EventPedidoExpirado       = "pedido_expirado"
	EventPedidoExcluido       = "pedido_excluido"
	EventEntregaAtribuida     = "entrega_atribuida"
	EventEntregaEmRota        = "entrega_em_rota"
	EventEntregaFinalizada    = "entrega_finalizada"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // pedido_id
	Payload       json.RawMessage `json:"payload"`
}

// Evento e uma notificacao de ciclo de vida dirigida a um usuario.
type Evento struct {
	UsuarioID string `json:"usuario_id"`
	Categoria string `json:"categoria"`
	Titulo    string `json:"titulo"`
	Mensagem  string `json:"mensagem"`
	PedidoID  string `json:"pedido_id,omitempty"`
}

func PartitionKey(usuarioID string) []byte { return []byte(usuarioID) }

// Emitter publica eventos de notificacao. Entrega e fire-and-forget:
// falha de publicacao nunca falha a operacao de negocio que a originou.
type Emitter struct {
	Producer *kafkax.Producer
	Service  string
}

func (e *Emitter) Emit(ctx context.Context, ev Evento) {
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Categoria,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: ev.PedidoID,
		Payload:       kafkax.MustMarshal(ev),
	}
	e.Producer.Publish(PartitionKey(ev.UsuarioID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(ev.Categoria)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
