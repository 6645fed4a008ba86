package orders

import "time"

type Pedido struct {
	ID               string
	UsuarioID        string
	Estado           Estado
	ValorTotal       int64
	SubtotalProdutos int64
	Frete            int64
	Comissao         int64
	PesoTotal        float64
	CriadoEm         time.Time
	ExpiraEm         time.Time // criado_em + 24h, imutavel
	ConfirmadoEm     *time.Time
	CanceladoEm      *time.Time
}

type ItemPedido struct {
	ID            string  `json:"id"`
	PedidoID      string  `json:"pedido_id"`
	ProdutoID     string  `json:"produto_id"`
	Nome          string  `json:"nome"`
	Quantidade    int     `json:"quantidade"`
	PrecoUnitario int64   `json:"preco_unitario"`
	Subtotal      int64   `json:"subtotal"` // congelado na criacao, nunca recalculado
	Peso          float64 `json:"peso"`
}

// Endereco e a copia do endereco de entrega anexada ao pedido na criacao,
// desacoplada do perfil do usuario.
type Endereco struct {
	Rua        string `json:"rua"`
	Bairro     string `json:"bairro"`
	Pais       string `json:"pais"`
	Municipio  string `json:"municipio"`
	Provincia  string `json:"provincia"`
	Referencia string `json:"referencia"`
	Numero     string `json:"numero"` // contacto movel, 9 digitos
}

// ItemCarrinho e uma linha do carrinho ja enriquecida com os dados do
// catalogo no momento da leitura.
type ItemCarrinho struct {
	ProdutoID     string
	Nome          string
	Quantidade    int
	PrecoUnitario int64
	PesoUnitario  float64
}

type PedidoPendente struct {
	ID               string    `json:"id_pedido"`
	ValorTotal       int64     `json:"valor_total"`
	CriadoEm         time.Time `json:"criado_em"`
	ExpiraEm         time.Time `json:"expira_em"`
	MinutosRestantes int64     `json:"minutos_restantes"`
}

type PedidoDetalhe struct {
	Pedido   Pedido
	Itens    []ItemPedido
	Endereco Endereco
}

// PedidoExpirado identifica um pedido varrido para expirado, para efeito de
// notificacao ao dono.
type PedidoExpirado struct {
	ID        string
	UsuarioID string
}
