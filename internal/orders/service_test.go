package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzoagro/backend/internal/apperr"
	"github.com/nzoagro/backend/internal/auth"
	"github.com/nzoagro/backend/internal/notify"
	"github.com/nzoagro/backend/internal/stock"
)

type fakeRepo struct {
	pendentes     int
	cart          []ItemCarrinho
	created       *CriarPedidoRecord
	header        Pedido
	headerErr     error
	confirmFaltas []stock.Shortfall
	confirmErr    error
	confirmado    bool
	cancelPrev    Estado
	cancelLibera  bool
	cancelErr     error
	cancelado     bool
	deleted       bool
	expirados     []PedidoExpirado
	listados      []PedidoPendente
	admins        []string
}

func (f *fakeRepo) CountPendentes(ctx context.Context, usuarioID string) (int, error) {
	return f.pendentes, nil
}

func (f *fakeRepo) ExpireUserStale(ctx context.Context, usuarioID string, now time.Time) ([]PedidoExpirado, error) {
	out := f.expirados
	f.expirados = nil
	return out, nil
}

func (f *fakeRepo) ExpireStale(ctx context.Context, now time.Time) ([]PedidoExpirado, error) {
	out := f.expirados
	f.expirados = nil
	return out, nil
}

func (f *fakeRepo) CartLines(ctx context.Context, usuarioID string) ([]ItemCarrinho, error) {
	return f.cart, nil
}

func (f *fakeRepo) CreatePedido(ctx context.Context, rec CriarPedidoRecord) error {
	f.created = &rec
	return nil
}

func (f *fakeRepo) ConfirmarPagamento(ctx context.Context, pedidoID, usuarioID string, now time.Time) ([]stock.Shortfall, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	if len(f.confirmFaltas) > 0 {
		return f.confirmFaltas, nil
	}
	f.confirmado = true
	return nil, nil
}

func (f *fakeRepo) GetHeader(ctx context.Context, pedidoID string) (Pedido, error) {
	if f.headerErr != nil {
		return Pedido{}, f.headerErr
	}
	return f.header, nil
}

func (f *fakeRepo) Cancelar(ctx context.Context, pedidoID string, now time.Time) (Estado, bool, error) {
	if f.cancelErr != nil {
		return "", false, f.cancelErr
	}
	f.cancelado = true
	return f.cancelPrev, f.cancelLibera, nil
}

func (f *fakeRepo) HardDelete(ctx context.Context, pedidoID string) error {
	f.deleted = true
	return nil
}

func (f *fakeRepo) ListPendentes(ctx context.Context, usuarioID string, now time.Time) ([]PedidoPendente, error) {
	return f.listados, nil
}

func (f *fakeRepo) GetDetalhe(ctx context.Context, pedidoID string) (PedidoDetalhe, error) {
	return PedidoDetalhe{Pedido: f.header}, f.headerErr
}

func (f *fakeRepo) AdminIDs(ctx context.Context) ([]string, error) {
	return f.admins, nil
}

type fakeLedger struct{ disponivel map[string]int }

func (f *fakeLedger) Available(ctx context.Context, produtoID string) (int, error) {
	n, ok := f.disponivel[produtoID]
	if !ok {
		return 0, apperr.New(apperr.KindNotFound, "sem registro de estoque")
	}
	return n, nil
}

type fakeNotifier struct{ eventos []notify.Evento }

func (f *fakeNotifier) Emit(ctx context.Context, ev notify.Evento) {
	f.eventos = append(f.eventos, ev)
}

func (f *fakeNotifier) categorias() []string {
	var out []string
	for _, e := range f.eventos {
		out = append(out, e.Categoria)
	}
	return out
}

func newTestService(repo *fakeRepo, ledger *fakeLedger, n *fakeNotifier) *Service {
	s := NewService(repo, ledger, n)
	s.now = func() time.Time { return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestCriarCarrinhoVazio(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeLedger{}, &fakeNotifier{})

	_, err := svc.Criar(context.Background(), "u1", enderecoValido())
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Nil(t, repo.created, "nenhuma linha deve ser gravada")
}

func TestCriarLimitePendentes(t *testing.T) {
	repo := &fakeRepo{pendentes: 3}
	svc := newTestService(repo, &fakeLedger{}, &fakeNotifier{})

	_, err := svc.Criar(context.Background(), "u1", enderecoValido())
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCriarEstoqueInsuficiente(t *testing.T) {
	repo := &fakeRepo{cart: []ItemCarrinho{
		{ProdutoID: "p1", Nome: "Milho", Quantidade: 5, PrecoUnitario: 1000, PesoUnitario: 2},
		{ProdutoID: "p2", Nome: "Feijao", Quantidade: 4, PrecoUnitario: 500, PesoUnitario: 1},
	}}
	ledger := &fakeLedger{disponivel: map[string]int{"p1": 10, "p2": 2}}
	svc := newTestService(repo, ledger, &fakeNotifier{})

	_, err := svc.Criar(context.Background(), "u1", enderecoValido())
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	faltas := ae.Detail.([]stock.Shortfall)
	require.Len(t, faltas, 1)
	assert.Equal(t, "p2", faltas[0].ProdutoID)
	assert.Equal(t, 4, faltas[0].Solicitado)
	assert.Equal(t, 2, faltas[0].Disponivel)

	assert.Nil(t, repo.created, "falha integral: nenhum pedido parcial")
}

func TestCriarPedidoFeliz(t *testing.T) {
	repo := &fakeRepo{cart: []ItemCarrinho{
		{ProdutoID: "p1", Nome: "Milho", Quantidade: 5, PrecoUnitario: 1000, PesoUnitario: 2},
	}}
	ledger := &fakeLedger{disponivel: map[string]int{"p1": 10}}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, ledger, notifier)

	res, err := svc.Criar(context.Background(), "u1", enderecoValido())
	require.NoError(t, err)

	assert.Equal(t, EstadoPendente, res.Estado)
	assert.Equal(t, int64(5000), res.Dados.SubtotalProdutos)
	assert.Equal(t, 10.0, res.Dados.PesoTotal)
	assert.Equal(t, int64(10000), res.Dados.Frete)
	assert.Equal(t, int64(1000), res.Dados.Comissao)
	assert.Equal(t, int64(16000), res.Dados.ValorTotal)
	require.Len(t, res.Dados.Itens, 1)
	assert.Equal(t, int64(5000), res.Dados.Itens[0].Subtotal)

	require.NotNil(t, repo.created)
	p := repo.created.Pedido
	assert.Equal(t, EstadoPendente, p.Estado)
	assert.Equal(t, p.CriadoEm.Add(24*time.Hour), p.ExpiraEm)

	assert.Equal(t, []string{notify.EventPedidoCriado}, notifier.categorias())
}

func TestConfirmarPagamento(t *testing.T) {
	repo := &fakeRepo{admins: []string{"a1", "a2"}}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeLedger{}, notifier)

	err := svc.ConfirmarPagamento(context.Background(), "ped1", "u1")
	require.NoError(t, err)
	assert.True(t, repo.confirmado)

	assert.Equal(t, []string{
		notify.EventPagamentoConfirmado,
		notify.EventNovoPedidoConfirmado,
		notify.EventNovoPedidoConfirmado,
	}, notifier.categorias())
}

func TestConfirmarPagamentoSemEstoque(t *testing.T) {
	repo := &fakeRepo{confirmFaltas: []stock.Shortfall{{ProdutoID: "p1", Solicitado: 5, Disponivel: 1}}}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeLedger{}, notifier)

	err := svc.ConfirmarPagamento(context.Background(), "ped1", "u1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	assert.Empty(t, notifier.eventos)
}

func TestConfirmarPagamentoExpirado(t *testing.T) {
	repo := &fakeRepo{confirmErr: apperr.New(apperr.KindExpired, "pedido expirado")}
	svc := newTestService(repo, &fakeLedger{}, &fakeNotifier{})

	err := svc.ConfirmarPagamento(context.Background(), "ped1", "u1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindExpired, apperr.KindOf(err))
}

func TestCancelarPermissao(t *testing.T) {
	repo := &fakeRepo{header: Pedido{ID: "ped1", UsuarioID: "dono", Estado: EstadoPendente}}
	svc := newTestService(repo, &fakeLedger{}, &fakeNotifier{})

	_, err := svc.Cancelar(context.Background(), "ped1", "intruso", auth.PapelComprador)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.False(t, repo.cancelado)
}

func TestCancelarPeloDono(t *testing.T) {
	repo := &fakeRepo{
		header:       Pedido{ID: "ped1", UsuarioID: "dono", Estado: EstadoConfirmado},
		cancelPrev:   EstadoConfirmado,
		cancelLibera: true,
	}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeLedger{}, notifier)

	liberado, err := svc.Cancelar(context.Background(), "ped1", "dono", auth.PapelComprador)
	require.NoError(t, err)
	assert.True(t, liberado)
	require.Len(t, notifier.eventos, 1)
	assert.Equal(t, notify.EventPedidoCancelado, notifier.eventos[0].Categoria)
	assert.NotContains(t, notifier.eventos[0].Mensagem, "administracao")
}

func TestCancelarPorAdmin(t *testing.T) {
	repo := &fakeRepo{
		header:     Pedido{ID: "ped1", UsuarioID: "dono", Estado: EstadoPendente},
		cancelPrev: EstadoPendente,
	}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeLedger{}, notifier)

	liberado, err := svc.Cancelar(context.Background(), "ped1", "admin", auth.PapelAdministrador)
	require.NoError(t, err)
	assert.False(t, liberado, "pendente nao segura estoque")
	require.Len(t, notifier.eventos, 1)
	assert.Contains(t, notifier.eventos[0].Mensagem, "administracao")
	assert.Equal(t, "dono", notifier.eventos[0].UsuarioID)
}

func TestCancelarEstadoInvalido(t *testing.T) {
	repo := &fakeRepo{
		header:    Pedido{ID: "ped1", UsuarioID: "dono", Estado: EstadoEntregue},
		cancelErr: apperr.New(apperr.KindInvalidState, "pedido em estado entregue nao pode ser cancelado"),
	}
	svc := newTestService(repo, &fakeLedger{}, &fakeNotifier{})

	_, err := svc.Cancelar(context.Background(), "ped1", "dono", auth.PapelComprador)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestExcluirExigeJustificativa(t *testing.T) {
	repo := &fakeRepo{header: Pedido{ID: "ped1", UsuarioID: "dono"}}
	svc := newTestService(repo, &fakeLedger{}, &fakeNotifier{})

	err := svc.Excluir(context.Background(), "ped1", "dono", auth.PapelComprador, "  ")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.False(t, repo.deleted)
}

func TestExcluirNotificaDonoEAdmins(t *testing.T) {
	repo := &fakeRepo{
		header: Pedido{ID: "ped1", UsuarioID: "dono"},
		admins: []string{"a1"},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeLedger{}, notifier)

	err := svc.Excluir(context.Background(), "ped1", "admin", auth.PapelAdministrador, "fraude confirmada")
	require.NoError(t, err)
	assert.True(t, repo.deleted)
	assert.Equal(t, []string{notify.EventPedidoExcluido, notify.EventPedidoExcluido}, notifier.categorias())
	assert.Contains(t, notifier.eventos[0].Mensagem, "fraude confirmada")
}

func TestExpirarPendentesIdempotente(t *testing.T) {
	repo := &fakeRepo{expirados: []PedidoExpirado{{ID: "p1", UsuarioID: "u1"}, {ID: "p2", UsuarioID: "u2"}}}
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeLedger{}, notifier)

	n, err := svc.ExpirarPendentes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, notifier.eventos, 2)

	// segunda varredura nao encontra nada
	n, err = svc.ExpirarPendentes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, notifier.eventos, 2)
}

func TestDonoDe(t *testing.T) {
	repo := &fakeRepo{header: Pedido{ID: "ped1", UsuarioID: "dono"}}
	svc := newTestService(repo, &fakeLedger{}, &fakeNotifier{})

	dono, err := svc.DonoDe(context.Background(), "ped1")
	require.NoError(t, err)
	assert.Equal(t, "dono", dono)

	repo.headerErr = apperr.New(apperr.KindNotFound, "pedido nao encontrado")
	_, err = svc.DonoDe(context.Background(), "ped1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDetalheDeOutroUsuario(t *testing.T) {
	repo := &fakeRepo{header: Pedido{ID: "ped1", UsuarioID: "dono"}}
	svc := newTestService(repo, &fakeLedger{}, &fakeNotifier{})

	_, err := svc.Detalhe(context.Background(), "ped1", "intruso", auth.PapelComprador)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// administrador pode ler qualquer pedido
	_, err = svc.Detalhe(context.Background(), "ped1", "admin", auth.PapelAdministrador)
	assert.NoError(t, err)
}
