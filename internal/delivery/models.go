package delivery

import "time"

// EstadoEntrega e a maquina de estados secundaria, mais frouxa que a do
// pedido: em_rota pode ser saltada quando a retirada e direta.
type EstadoEntrega string

const (
	EstadoAguardandoRetirada EstadoEntrega = "aguardando_retirada"
	EstadoEmRota             EstadoEntrega = "em_rota"
	EstadoEntregue           EstadoEntrega = "entregue"
)

type Entrega struct {
	ID                string        `json:"id"`
	PedidoID          string        `json:"pedido_id"`
	TransportadoraID  string        `json:"transportadora_id"`
	FilialID          string        `json:"filial_id"`
	Estado            EstadoEntrega `json:"estado"`
	Observacoes       string        `json:"observacoes"`
	ObservacoesFinais string        `json:"observacoes_finais,omitempty"`
	CriadoEm          time.Time     `json:"criado_em"`
	FinalizadoEm      *time.Time    `json:"finalizado_em,omitempty"`
}

type Filial struct {
	ID               string `json:"id"`
	TransportadoraID string `json:"transportadora_id"`
	Nome             string `json:"nome"`
	Endereco         string `json:"endereco"`
	Contacto         string `json:"contacto"`
}

// Transportadora resume os dados de contacto usados nas notificacoes ao
// cliente.
type Transportadora struct {
	ID       string
	Nome     string
	Contacto string
}
