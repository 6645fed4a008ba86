package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/nzoagro/backend/internal/kafka"
	"github.com/nzoagro/backend/internal/redisx"
)

type EventStore interface {
	Inserir(ctx context.Context, ev Evento) (Notificacao, error)
}

type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Marcar(ctx context.Context, key string) error
}

// Consumer grava o historico e empurra para a conexao viva, se houver.
// Um usuario offline nao e erro; falha de persistencia retorna erro para
// que a mensagem seja reentregue.
type Consumer struct {
	Store    EventStore
	Registry *Registry
	Dedup    Deduper
	Service  string
}

func (c *Consumer) HandleEvento(ctx context.Context, m kafkago.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// mensagem malformada nunca vai processar; descarta com log
		log.Printf("notify: envelope invalido: %v", err)
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, c.Service, env.EventID)
	if seen, _ := c.Dedup.Seen(ctx, dkey); seen {
		return nil
	}

	ev, err := kafkax.UnwrapPayload[Evento](env.Payload)
	if err != nil {
		log.Printf("notify: payload invalido event_id=%s: %v", env.EventID, err)
		return nil
	}
	if ev.UsuarioID == "" {
		return nil
	}

	n, err := c.Store.Inserir(ctx, ev)
	if err != nil {
		return err
	}
	_ = c.Dedup.Marcar(ctx, dkey)

	c.Registry.Send(ev.UsuarioID, n)
	return nil
}
