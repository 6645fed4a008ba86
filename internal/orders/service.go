package orders

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nzoagro/backend/internal/apperr"
	"github.com/nzoagro/backend/internal/auth"
	"github.com/nzoagro/backend/internal/notify"
	"github.com/nzoagro/backend/internal/stock"
)

// limite de pedidos pendentes por usuario
const maxPendentes = 3

const prazoPagamento = 24 * time.Hour

type Repository interface {
	CountPendentes(ctx context.Context, usuarioID string) (int, error)
	ExpireUserStale(ctx context.Context, usuarioID string, now time.Time) ([]PedidoExpirado, error)
	ExpireStale(ctx context.Context, now time.Time) ([]PedidoExpirado, error)
	CartLines(ctx context.Context, usuarioID string) ([]ItemCarrinho, error)
	CreatePedido(ctx context.Context, rec CriarPedidoRecord) error
	ConfirmarPagamento(ctx context.Context, pedidoID, usuarioID string, now time.Time) ([]stock.Shortfall, error)
	GetHeader(ctx context.Context, pedidoID string) (Pedido, error)
	Cancelar(ctx context.Context, pedidoID string, now time.Time) (Estado, bool, error)
	HardDelete(ctx context.Context, pedidoID string) error
	ListPendentes(ctx context.Context, usuarioID string, now time.Time) ([]PedidoPendente, error)
	GetDetalhe(ctx context.Context, pedidoID string) (PedidoDetalhe, error)
	AdminIDs(ctx context.Context) ([]string, error)
}

type Ledger interface {
	Available(ctx context.Context, produtoID string) (int, error)
}

type Notifier interface {
	Emit(ctx context.Context, ev notify.Evento)
}

// Service e o motor de ciclo de vida dos pedidos: toda transicao de estado
// passa por aqui.
type Service struct {
	repo     Repository
	ledger   Ledger
	notifier Notifier
	now      func() time.Time
}

func NewService(repo Repository, ledger Ledger, notifier Notifier) *Service {
	return &Service{repo: repo, ledger: ledger, notifier: notifier, now: time.Now}
}

type DadosPagamento struct {
	ValorTotal       int64        `json:"valor_total"`
	SubtotalProdutos int64        `json:"subtotalProdutos"`
	Frete            int64        `json:"frete"`
	Comissao         int64        `json:"comissao"`
	Itens            []ItemPedido `json:"itens"`
	PesoTotal        float64      `json:"peso_total"`
}

type CriarPedidoResult struct {
	PedidoID string
	Estado   Estado
	Dados    DadosPagamento
}

// Criar monta um pedido pendente a partir do carrinho do usuario. A
// disponibilidade e verificada linha a linha sem reservar nada: a reserva
// so acontece na confirmacao do pagamento.
func (s *Service) Criar(ctx context.Context, usuarioID string, end Endereco) (*CriarPedidoResult, error) {
	now := s.now()

	expirados, err := s.repo.ExpireUserStale(ctx, usuarioID, now)
	if err != nil {
		return nil, err
	}
	s.notificarExpirados(ctx, expirados)

	n, err := s.repo.CountPendentes(ctx, usuarioID)
	if err != nil {
		return nil, err
	}
	if n >= maxPendentes {
		return nil, apperr.Newf(apperr.KindValidation,
			"limite de %d pedidos pendentes atingido; confirme ou cancele um pedido existente", maxPendentes)
	}

	if err := ValidarEndereco(end); err != nil {
		return nil, err
	}

	linhas, err := s.repo.CartLines(ctx, usuarioID)
	if err != nil {
		return nil, err
	}
	if len(linhas) == 0 {
		return nil, apperr.New(apperr.KindValidation, "carrinho vazio")
	}

	var faltas []stock.Shortfall
	for _, l := range linhas {
		if l.Quantidade <= 0 {
			return nil, apperr.Newf(apperr.KindValidation, "quantidade invalida para o produto %s", l.Nome)
		}
		disp, err := s.ledger.Available(ctx, l.ProdutoID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				disp = 0
			} else {
				return nil, err
			}
		}
		if disp < l.Quantidade {
			faltas = append(faltas, stock.Shortfall{
				ProdutoID: l.ProdutoID, Nome: l.Nome,
				Solicitado: l.Quantidade, Disponivel: disp,
			})
		}
	}
	if len(faltas) > 0 {
		// falha integral: nenhum pedido parcial e gravado
		return nil, stock.InsufficientErr(faltas)
	}

	pedidoID := uuid.NewString()
	var itens []ItemPedido
	var subtotal int64
	var pesoTotal float64
	for _, l := range linhas {
		it := ItemPedido{
			ID:            uuid.NewString(),
			PedidoID:      pedidoID,
			ProdutoID:     l.ProdutoID,
			Nome:          l.Nome,
			Quantidade:    l.Quantidade,
			PrecoUnitario: l.PrecoUnitario,
			Subtotal:      l.PrecoUnitario * int64(l.Quantidade),
			Peso:          Round2(l.PesoUnitario * float64(l.Quantidade)),
		}
		itens = append(itens, it)
		subtotal += it.Subtotal
		pesoTotal += it.Peso
	}
	pesoTotal = Round2(pesoTotal)
	frete := CalcFrete(pesoTotal)
	valorTotal := TotalPedido(subtotal, frete)

	pedido := Pedido{
		ID:               pedidoID,
		UsuarioID:        usuarioID,
		Estado:           EstadoPendente,
		ValorTotal:       valorTotal,
		SubtotalProdutos: subtotal,
		Frete:            frete.Base,
		Comissao:         frete.Comissao,
		PesoTotal:        pesoTotal,
		CriadoEm:         now,
		ExpiraEm:         now.Add(prazoPagamento),
	}
	if err := s.repo.CreatePedido(ctx, CriarPedidoRecord{Pedido: pedido, Endereco: end, Itens: itens}); err != nil {
		return nil, err
	}

	s.notifier.Emit(ctx, notify.Evento{
		UsuarioID: usuarioID,
		Categoria: notify.EventPedidoCriado,
		Titulo:    "Pedido criado",
		Mensagem:  fmt.Sprintf("O seu pedido foi criado no valor de %d. Confirme o pagamento em ate 24 horas.", valorTotal),
		PedidoID:  pedidoID,
	})

	return &CriarPedidoResult{
		PedidoID: pedidoID,
		Estado:   EstadoPendente,
		Dados: DadosPagamento{
			ValorTotal:       valorTotal,
			SubtotalProdutos: subtotal,
			Frete:            frete.Base,
			Comissao:         frete.Comissao,
			Itens:            itens,
			PesoTotal:        pesoTotal,
		},
	}, nil
}

// ConfirmarPagamento reverifica e reserva estoque numa unica unidade
// atomica; em caso de falta nada e reservado e todas as faltas sao
// devolvidas ao cliente.
func (s *Service) ConfirmarPagamento(ctx context.Context, pedidoID, usuarioID string) error {
	faltas, err := s.repo.ConfirmarPagamento(ctx, pedidoID, usuarioID, s.now())
	if err != nil {
		return err
	}
	if len(faltas) > 0 {
		return stock.InsufficientErr(faltas)
	}

	s.notifier.Emit(ctx, notify.Evento{
		UsuarioID: usuarioID,
		Categoria: notify.EventPagamentoConfirmado,
		Titulo:    "Pagamento confirmado",
		Mensagem:  fmt.Sprintf("Pagamento do pedido %s confirmado. O estoque foi reservado.", pedidoID),
		PedidoID:  pedidoID,
	})
	s.notificarAdmins(ctx, notify.EventNovoPedidoConfirmado, "Novo pedido confirmado",
		fmt.Sprintf("O pedido %s foi confirmado e aguarda processamento.", pedidoID), pedidoID)
	return nil
}

// Cancelar permite ao dono ou a um administrador cancelar qualquer pedido
// nao terminal. Devolve se houve liberacao de estoque.
func (s *Service) Cancelar(ctx context.Context, pedidoID, actorID string, papel auth.Papel) (bool, error) {
	header, err := s.repo.GetHeader(ctx, pedidoID)
	if err != nil {
		return false, err
	}
	if header.UsuarioID != actorID && !papel.IsAdmin() {
		return false, apperr.New(apperr.KindForbidden, "sem permissao para cancelar este pedido")
	}

	_, liberado, err := s.repo.Cancelar(ctx, pedidoID, s.now())
	if err != nil {
		return false, err
	}

	msg := fmt.Sprintf("O seu pedido %s foi cancelado.", pedidoID)
	if actorID != header.UsuarioID {
		msg = fmt.Sprintf("O seu pedido %s foi cancelado pela administracao.", pedidoID)
	}
	s.notifier.Emit(ctx, notify.Evento{
		UsuarioID: header.UsuarioID,
		Categoria: notify.EventPedidoCancelado,
		Titulo:    "Pedido cancelado",
		Mensagem:  msg,
		PedidoID:  pedidoID,
	})
	return liberado, nil
}

// Excluir e uma remocao destrutiva fora do ciclo de vida; exige uma
// justificativa que fica registrada e e propagada nas notificacoes.
func (s *Service) Excluir(ctx context.Context, pedidoID, actorID string, papel auth.Papel, justificativa string) error {
	if strings.TrimSpace(justificativa) == "" {
		return apperr.New(apperr.KindValidation, "justificativa obrigatoria para excluir um pedido")
	}
	header, err := s.repo.GetHeader(ctx, pedidoID)
	if err != nil {
		return err
	}
	if header.UsuarioID != actorID && !papel.IsAdmin() {
		return apperr.New(apperr.KindForbidden, "sem permissao para excluir este pedido")
	}

	if err := s.repo.HardDelete(ctx, pedidoID); err != nil {
		return err
	}
	log.Printf("pedido %s excluido por %s (papel=%s): %s", pedidoID, actorID, papel, justificativa)

	msg := fmt.Sprintf("O pedido %s foi excluido. Justificativa: %s", pedidoID, justificativa)
	s.notifier.Emit(ctx, notify.Evento{
		UsuarioID: header.UsuarioID,
		Categoria: notify.EventPedidoExcluido,
		Titulo:    "Pedido excluido",
		Mensagem:  msg,
		PedidoID:  pedidoID,
	})
	s.notificarAdmins(ctx, notify.EventPedidoExcluido, "Pedido excluido", msg, pedidoID)
	return nil
}

// Pendentes expira oportunisticamente antes de listar, para que o cliente
// nunca veja um pendente ja vencido.
func (s *Service) Pendentes(ctx context.Context, usuarioID string) ([]PedidoPendente, error) {
	now := s.now()
	expirados, err := s.repo.ExpireUserStale(ctx, usuarioID, now)
	if err != nil {
		return nil, err
	}
	s.notificarExpirados(ctx, expirados)
	return s.repo.ListPendentes(ctx, usuarioID, now)
}

// Detalhe devolve o pedido completo ao dono ou a um administrador; para
// qualquer outro ator o pedido simplesmente nao existe.
func (s *Service) Detalhe(ctx context.Context, pedidoID, actorID string, papel auth.Papel) (PedidoDetalhe, error) {
	d, err := s.repo.GetDetalhe(ctx, pedidoID)
	if err != nil {
		return PedidoDetalhe{}, err
	}
	if d.Pedido.UsuarioID != actorID && !papel.IsAdmin() {
		return PedidoDetalhe{}, apperr.New(apperr.KindNotFound, "pedido nao encontrado")
	}
	return d, nil
}

// DonoDe devolve o dono do pedido, para checagens de posse que nao
// precisam carregar o detalhe completo.
func (s *Service) DonoDe(ctx context.Context, pedidoID string) (string, error) {
	p, err := s.repo.GetHeader(ctx, pedidoID)
	if err != nil {
		return "", err
	}
	return p.UsuarioID, nil
}

// ExpirarPendentes e a varredura periodica. Idempotente por construcao.
func (s *Service) ExpirarPendentes(ctx context.Context) (int, error) {
	expirados, err := s.repo.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.notificarExpirados(ctx, expirados)
	return len(expirados), nil
}

func (s *Service) Disponivel(ctx context.Context, produtoID string) (int, error) {
	return s.ledger.Available(ctx, produtoID)
}

func (s *Service) notificarExpirados(ctx context.Context, expirados []PedidoExpirado) {
	for _, p := range expirados {
		s.notifier.Emit(ctx, notify.Evento{
			UsuarioID: p.UsuarioID,
			Categoria: notify.EventPedidoExpirado,
			Titulo:    "Pedido expirado",
			Mensagem:  fmt.Sprintf("O pedido %s expirou por falta de pagamento dentro de 24 horas.", p.ID),
			PedidoID:  p.ID,
		})
	}
}

func (s *Service) notificarAdmins(ctx context.Context, categoria, titulo, msg, pedidoID string) {
	admins, err := s.repo.AdminIDs(ctx)
	if err != nil {
		// fan-out de notificacao nunca falha a operacao de negocio
		log.Printf("orders: listar administradores: %v", err)
		return
	}
	for _, id := range admins {
		s.notifier.Emit(ctx, notify.Evento{
			UsuarioID: id,
			Categoria: categoria,
			Titulo:    titulo,
			Mensagem:  msg,
			PedidoID:  pedidoID,
		})
	}
}
