package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	// caminho feliz
	assert.True(t, CanTransition(EstadoPendente, EstadoConfirmado))
	assert.True(t, CanTransition(EstadoConfirmado, EstadoProcessado))
	assert.True(t, CanTransition(EstadoProcessado, EstadoEnviado))
	assert.True(t, CanTransition(EstadoEnviado, EstadoEntregue))

	// expiracao so a partir de pendente
	assert.True(t, CanTransition(EstadoPendente, EstadoExpirado))
	assert.False(t, CanTransition(EstadoConfirmado, EstadoExpirado))

	// cancelamento de qualquer estado nao terminal
	for _, e := range []Estado{EstadoPendente, EstadoConfirmado, EstadoProcessado, EstadoEnviado} {
		assert.True(t, CanTransition(e, EstadoCancelado), "de %s", e)
	}
	for _, e := range []Estado{EstadoEntregue, EstadoCancelado, EstadoExpirado} {
		assert.False(t, CanTransition(e, EstadoCancelado), "de %s", e)
	}

	// sem saltos
	assert.False(t, CanTransition(EstadoPendente, EstadoEntregue))
	assert.False(t, CanTransition(EstadoPendente, EstadoProcessado))
}

func TestEstadoTerminal(t *testing.T) {
	for _, e := range []Estado{EstadoEntregue, EstadoCancelado, EstadoExpirado} {
		assert.True(t, e.Terminal(), "%s", e)
	}
	for _, e := range []Estado{EstadoPendente, EstadoConfirmado, EstadoProcessado, EstadoEnviado} {
		assert.False(t, e.Terminal(), "%s", e)
	}
}

func TestEstadoReservando(t *testing.T) {
	assert.False(t, EstadoPendente.Reservando())
	assert.True(t, EstadoConfirmado.Reservando())
	assert.True(t, EstadoProcessado.Reservando())
	assert.True(t, EstadoEnviado.Reservando())
	assert.False(t, EstadoEntregue.Reservando())
	assert.False(t, EstadoCancelado.Reservando())
}
