package orders

type Estado string

const (
	EstadoPendente   Estado = "pendente"
	EstadoConfirmado Estado = "confirmado"
	EstadoProcessado Estado = "processado"
	EstadoEnviado    Estado = "enviado"
	EstadoEntregue   Estado = "entregue"
	EstadoCancelado  Estado = "cancelado"
	EstadoExpirado   Estado = "expirado"
)

var validNext = map[Estado]map[Estado]bool{
	EstadoPendente:   {EstadoConfirmado: true, EstadoExpirado: true, EstadoCancelado: true},
	EstadoConfirmado: {EstadoProcessado: true, EstadoCancelado: true},
	// entregue direto de processado cobre retirada sem fase em rota
	EstadoProcessado: {EstadoEnviado: true, EstadoEntregue: true, EstadoCancelado: true},
	EstadoEnviado:    {EstadoEntregue: true, EstadoCancelado: true},
	EstadoEntregue:   {},
	EstadoCancelado:  {},
	EstadoExpirado:   {},
}

func CanTransition(from, to Estado) bool {
	return validNext[from][to]
}

func (e Estado) Terminal() bool {
	return len(validNext[e]) == 0
}

// Reservando indica os estados que seguram estoque reservado.
func (e Estado) Reservando() bool {
	return e == EstadoConfirmado || e == EstadoProcessado || e == EstadoEnviado
}
