package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nzoagro/backend/internal/apperr"
	"github.com/nzoagro/backend/internal/stock"
)

type Repo struct {
	DB     *pgxpool.Pool
	Ledger *stock.Ledger
}

type CriarPedidoRecord struct {
	Pedido   Pedido
	Endereco Endereco
	Itens    []ItemPedido
}

func (r *Repo) CountPendentes(ctx context.Context, usuarioID string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM pedidos WHERE usuario_id = $1 AND estado = 'pendente'`,
		usuarioID).Scan(&n)
	return n, err
}

// ExpireUserStale expira os pendentes vencidos do proprio usuario antes de
// qualquer avaliacao do limite de pendentes.
func (r *Repo) ExpireUserStale(ctx context.Context, usuarioID string, now time.Time) ([]PedidoExpirado, error) {
	return r.expire(ctx, now, `
		UPDATE pedidos SET estado = 'expirado'
		WHERE usuario_id = $2 AND estado = 'pendente'
		  AND (expira_em < $1 OR criado_em < $1 - interval '24 hours')
		RETURNING id, usuario_id`, usuarioID)
}

// ExpireStale e a varredura periodica global. Idempotente: re-executar sem
// novos vencimentos nao afeta linha alguma.
func (r *Repo) ExpireStale(ctx context.Context, now time.Time) ([]PedidoExpirado, error) {
	return r.expire(ctx, now, `
		UPDATE pedidos SET estado = 'expirado'
		WHERE estado = 'pendente'
		  AND (expira_em < $1 OR criado_em < $1 - interval '24 hours')
		RETURNING id, usuario_id`)
}

func (r *Repo) expire(ctx context.Context, now time.Time, sql string, extra ...any) ([]PedidoExpirado, error) {
	args := append([]any{now}, extra...)
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PedidoExpirado
	for rows.Next() {
		var p PedidoExpirado
		if err := rows.Scan(&p.ID, &p.UsuarioID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CartLines le o carrinho do usuario com preco e peso atuais do catalogo.
func (r *Repo) CartLines(ctx context.Context, usuarioID string) ([]ItemCarrinho, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT c.produto_id, p.nome, c.quantidade, p.preco, p.peso_kg
		FROM carrinho c JOIN produtos p ON p.id = c.produto_id
		WHERE c.usuario_id = $1
		ORDER BY p.nome`, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemCarrinho
	for rows.Next() {
		var it ItemCarrinho
		if err := rows.Scan(&it.ProdutoID, &it.Nome, &it.Quantidade, &it.PrecoUnitario, &it.PesoUnitario); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CreatePedido persiste cabecalho, endereco e itens numa transacao; nada
// e gravado se qualquer passo falhar.
func (r *Repo) CreatePedido(ctx context.Context, rec CriarPedidoRecord) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p := rec.Pedido
	if _, err := tx.Exec(ctx, `
		INSERT INTO pedidos (id, usuario_id, estado, valor_total, subtotal_produtos,
		                     frete, comissao, peso_total, criado_em, expira_em)
		VALUES ($1, $2, 'pendente', $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UsuarioID, p.ValorTotal, p.SubtotalProdutos,
		p.Frete, p.Comissao, p.PesoTotal, p.CriadoEm, p.ExpiraEm); err != nil {
		return err
	}

	e := rec.Endereco
	if _, err := tx.Exec(ctx, `
		INSERT INTO endereco_pedidos (pedido_id, rua, bairro, pais, municipio,
		                              provincia, referencia, numero)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, e.Rua, e.Bairro, e.Pais, e.Municipio, e.Provincia, e.Referencia, e.Numero); err != nil {
		return err
	}

	for _, it := range rec.Itens {
		if _, err := tx.Exec(ctx, `
			INSERT INTO itens_pedido (id, pedido_id, produto_id, quantidade,
			                          preco_unitario, subtotal, peso)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, p.ID, it.ProdutoID, it.Quantidade, it.PrecoUnitario, it.Subtotal, it.Peso); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ConfirmarPagamento executa a unidade atomica de confirmacao: trava o
// pedido, reverifica e reserva estoque linha a linha, marca confirmado e
// limpa o carrinho. Qualquer falta de estoque desfaz tudo e devolve a
// lista completa de faltas.
func (r *Repo) ConfirmarPagamento(ctx context.Context, pedidoID, usuarioID string, now time.Time) ([]stock.Shortfall, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var estado Estado
	var expiraEm time.Time
	err = tx.QueryRow(ctx, `
		SELECT estado, expira_em FROM pedidos
		WHERE id = $1 AND usuario_id = $2
		FOR UPDATE`, pedidoID, usuarioID).Scan(&estado, &expiraEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "pedido nao encontrado")
	}
	if err != nil {
		return nil, err
	}
	if estado != EstadoPendente {
		return nil, apperr.New(apperr.KindNotFound, "pedido nao encontrado ou ja processado")
	}
	if now.After(expiraEm) {
		if _, err := tx.Exec(ctx, `UPDATE pedidos SET estado = 'expirado' WHERE id = $1`, pedidoID); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.KindExpired, "pedido expirado: o prazo de pagamento de 24h passou")
	}

	rows, err := tx.Query(ctx, `
		SELECT produto_id, quantidade FROM itens_pedido WHERE pedido_id = $1`, pedidoID)
	if err != nil {
		return nil, err
	}
	var items []stock.ItemQtd
	for rows.Next() {
		var it stock.ItemQtd
		if err := rows.Scan(&it.ProdutoID, &it.Quantidade); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	faltas, err := r.Ledger.ReserveInTx(ctx, tx, pedidoID, items)
	if err != nil {
		return nil, err
	}
	if len(faltas) > 0 {
		return faltas, nil // rollback via defer, nenhuma reserva parcial
	}

	if _, err := tx.Exec(ctx, `
		UPDATE pedidos SET estado = 'confirmado', confirmado_em = $2 WHERE id = $1`,
		pedidoID, now); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM carrinho WHERE usuario_id = $1`, usuarioID); err != nil {
		return nil, err
	}
	return nil, tx.Commit(ctx)
}

// GetHeader devolve dono e estado para checagens de permissao.
func (r *Repo) GetHeader(ctx context.Context, pedidoID string) (Pedido, error) {
	var p Pedido
	err := r.DB.QueryRow(ctx, `
		SELECT id, usuario_id, estado, valor_total, criado_em, expira_em
		FROM pedidos WHERE id = $1`, pedidoID).
		Scan(&p.ID, &p.UsuarioID, &p.Estado, &p.ValorTotal, &p.CriadoEm, &p.ExpiraEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Pedido{}, apperr.New(apperr.KindNotFound, "pedido nao encontrado")
	}
	return p, err
}

// Cancelar marca o pedido cancelado e libera reservas se o estado anterior
// as segurava. Reverifica o estado sob lock: a checagem previa do service
// nao e suficiente contra corridas.
func (r *Repo) Cancelar(ctx context.Context, pedidoID string, now time.Time) (prev Estado, liberado bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		SELECT estado FROM pedidos WHERE id = $1 FOR UPDATE`, pedidoID).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, apperr.New(apperr.KindNotFound, "pedido nao encontrado")
	}
	if err != nil {
		return "", false, err
	}
	if !CanTransition(prev, EstadoCancelado) {
		return "", false, apperr.Newf(apperr.KindInvalidState, "pedido em estado %s nao pode ser cancelado", prev)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE pedidos SET estado = 'cancelado', cancelado_em = $2 WHERE id = $1`,
		pedidoID, now); err != nil {
		return "", false, err
	}
	if prev.Reservando() {
		liberado, err = r.Ledger.ReleaseInTx(ctx, tx, pedidoID)
		if err != nil {
			return "", false, err
		}
	}
	return prev, liberado, tx.Commit(ctx)
}

// HardDelete remove o pedido e tudo que pende dele. Reservas ativas sao
// liberadas antes da remocao.
func (r *Repo) HardDelete(ctx context.Context, pedidoID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := r.Ledger.ReleaseInTx(ctx, tx, pedidoID); err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM entregas WHERE pedido_id = $1`,
		`DELETE FROM itens_pedido WHERE pedido_id = $1`,
		`DELETE FROM endereco_pedidos WHERE pedido_id = $1`,
		`DELETE FROM pedidos WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, pedidoID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) ListPendentes(ctx context.Context, usuarioID string, now time.Time) ([]PedidoPendente, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, valor_total, criado_em, expira_em FROM pedidos
		WHERE usuario_id = $1 AND estado = 'pendente'
		ORDER BY criado_em DESC`, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PedidoPendente
	for rows.Next() {
		var p PedidoPendente
		if err := rows.Scan(&p.ID, &p.ValorTotal, &p.CriadoEm, &p.ExpiraEm); err != nil {
			return nil, err
		}
		if rest := p.ExpiraEm.Sub(now); rest > 0 {
			p.MinutosRestantes = int64(rest.Minutes())
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetDetalhe(ctx context.Context, pedidoID string) (PedidoDetalhe, error) {
	var d PedidoDetalhe
	p := &d.Pedido
	err := r.DB.QueryRow(ctx, `
		SELECT id, usuario_id, estado, valor_total, subtotal_produtos, frete,
		       comissao, peso_total, criado_em, expira_em, confirmado_em, cancelado_em
		FROM pedidos WHERE id = $1`, pedidoID).
		Scan(&p.ID, &p.UsuarioID, &p.Estado, &p.ValorTotal, &p.SubtotalProdutos,
			&p.Frete, &p.Comissao, &p.PesoTotal, &p.CriadoEm, &p.ExpiraEm,
			&p.ConfirmadoEm, &p.CanceladoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return d, apperr.New(apperr.KindNotFound, "pedido nao encontrado")
	}
	if err != nil {
		return d, err
	}

	err = r.DB.QueryRow(ctx, `
		SELECT rua, bairro, pais, municipio, provincia, referencia, numero
		FROM endereco_pedidos WHERE pedido_id = $1`, pedidoID).
		Scan(&d.Endereco.Rua, &d.Endereco.Bairro, &d.Endereco.Pais, &d.Endereco.Municipio,
			&d.Endereco.Provincia, &d.Endereco.Referencia, &d.Endereco.Numero)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return d, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT i.id, i.pedido_id, i.produto_id, p.nome, i.quantidade,
		       i.preco_unitario, i.subtotal, i.peso
		FROM itens_pedido i JOIN produtos p ON p.id = i.produto_id
		WHERE i.pedido_id = $1`, pedidoID)
	if err != nil {
		return d, err
	}
	defer rows.Close()
	for rows.Next() {
		var it ItemPedido
		if err := rows.Scan(&it.ID, &it.PedidoID, &it.ProdutoID, &it.Nome,
			&it.Quantidade, &it.PrecoUnitario, &it.Subtotal, &it.Peso); err != nil {
			return d, err
		}
		d.Itens = append(d.Itens, it)
	}
	return d, rows.Err()
}

// AdminIDs lista os administradores para o fan-out de notificacoes.
func (r *Repo) AdminIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT id FROM usuarios WHERE papel = 'administrador'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
