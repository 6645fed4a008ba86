package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/nzoagro/backend/internal/kafka"
	"github.com/nzoagro/backend/internal/redisx"
)

type fakeEventStore struct {
	inseridos []Evento
	err       error
}

func (f *fakeEventStore) Inserir(ctx context.Context, ev Evento) (Notificacao, error) {
	if f.err != nil {
		return Notificacao{}, f.err
	}
	f.inseridos = append(f.inseridos, ev)
	return Notificacao{ID: "n1", UsuarioID: ev.UsuarioID, Mensagem: ev.Mensagem}, nil
}

type fakeDedup struct{ vistos map[string]bool }

func newFakeDedup() *fakeDedup { return &fakeDedup{vistos: map[string]bool{}} }

func (f *fakeDedup) Seen(ctx context.Context, key string) (bool, error) {
	return f.vistos[key], nil
}

func (f *fakeDedup) Marcar(ctx context.Context, key string) error {
	f.vistos[key] = true
	return nil
}

func mensagemDeEvento(eventID string, ev Evento) kafkago.Message {
	env := Envelope{
		EventID:      eventID,
		EventType:    ev.Categoria,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "teste",
		Payload:      kafkax.MustMarshal(ev),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func newTestConsumer(store *fakeEventStore, dedup *fakeDedup) *Consumer {
	return &Consumer{
		Store:    store,
		Registry: NewRegistry(),
		Dedup:    dedup,
		Service:  "notifier-teste",
	}
}

func TestHandleEventoPersisteEEnvia(t *testing.T) {
	store := &fakeEventStore{}
	dedup := newFakeDedup()
	c := newTestConsumer(store, dedup)

	conn := &fakeConn{}
	c.Registry.Register("u1", conn)

	ev := Evento{UsuarioID: "u1", Categoria: EventPedidoCriado, Titulo: "Pedido criado", Mensagem: "ola"}
	err := c.HandleEvento(context.Background(), mensagemDeEvento("ev1", ev))
	require.NoError(t, err)

	require.Len(t, store.inseridos, 1)
	assert.Equal(t, "u1", store.inseridos[0].UsuarioID)
	assert.True(t, dedup.vistos[fmt.Sprintf(redisx.KeyDedup, "notifier-teste", "ev1")])
	assert.Len(t, conn.escritos, 1)
}

func TestHandleEventoDuplicado(t *testing.T) {
	store := &fakeEventStore{}
	dedup := newFakeDedup()
	c := newTestConsumer(store, dedup)

	ev := Evento{UsuarioID: "u1", Categoria: EventPedidoCriado, Mensagem: "ola"}
	m := mensagemDeEvento("ev1", ev)

	require.NoError(t, c.HandleEvento(context.Background(), m))
	require.NoError(t, c.HandleEvento(context.Background(), m))

	assert.Len(t, store.inseridos, 1, "reentrega do mesmo event_id nao duplica o historico")
}

func TestHandleEventoErroDePersistencia(t *testing.T) {
	store := &fakeEventStore{err: errors.New("pg: connection refused")}
	dedup := newFakeDedup()
	c := newTestConsumer(store, dedup)

	ev := Evento{UsuarioID: "u1", Categoria: EventPedidoCriado, Mensagem: "ola"}
	err := c.HandleEvento(context.Background(), mensagemDeEvento("ev1", ev))
	require.Error(t, err)

	// sem marca de dedup: a reentrega reprocessa do zero
	assert.Empty(t, dedup.vistos)

	store.err = nil
	require.NoError(t, c.HandleEvento(context.Background(), mensagemDeEvento("ev1", ev)))
	assert.Len(t, store.inseridos, 1)
}

func TestHandleEventoEnvelopeInvalido(t *testing.T) {
	store := &fakeEventStore{}
	c := newTestConsumer(store, newFakeDedup())

	err := c.HandleEvento(context.Background(), kafkago.Message{Value: []byte("{nao e json")})
	assert.NoError(t, err, "mensagem malformada e descartada, nunca reentregue")
	assert.Empty(t, store.inseridos)
}

func TestHandleEventoSemDestinatario(t *testing.T) {
	store := &fakeEventStore{}
	c := newTestConsumer(store, newFakeDedup())

	ev := Evento{UsuarioID: "", Categoria: EventPedidoCriado}
	require.NoError(t, c.HandleEvento(context.Background(), mensagemDeEvento("ev1", ev)))
	assert.Empty(t, store.inseridos)
}
