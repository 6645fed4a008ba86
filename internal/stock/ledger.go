package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nzoagro/backend/internal/apperr"
)

// Shortfall reports one product whose requested quantity exceeds what is
// free right now.
type Shortfall struct {
	ProdutoID  string `json:"produto_id"`
	Nome       string `json:"nome,omitempty"`
	Solicitado int    `json:"quantidade_solicitada"`
	Disponivel int    `json:"quantidade_disponivel"`
}

type ItemQtd struct {
	ProdutoID  string
	Quantidade int
}

// Ledger answers availability questions and moves reservations through
// their lifecycle. Free stock is always on-hand minus active reservations;
// on-hand itself only drops when a delivery is finalized.
type Ledger struct{ DB *pgxpool.Pool }

const availableSQL = `
	SELECT e.quantidade - COALESCE((
		SELECT SUM(r.quantidade) FROM reservas_estoque r
		WHERE r.produto_id = e.produto_id AND r.status = 'ativa'
	), 0)
	FROM estoque e WHERE e.produto_id = $1`

func (l *Ledger) Available(ctx context.Context, produtoID string) (int, error) {
	var n int
	err := l.DB.QueryRow(ctx, availableSQL, produtoID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.Newf(apperr.KindNotFound, "produto sem registro de estoque: %s", produtoID)
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ReserveInTx locks each product's stock row, re-checks availability and
// records an active reservation per item. It runs inside the caller's
// transaction: any returned shortfall means the caller must roll back, so
// no partial reservation ever commits.
func (l *Ledger) ReserveInTx(ctx context.Context, tx pgx.Tx, pedidoID string, items []ItemQtd) ([]Shortfall, error) {
	var faltas []Shortfall
	for _, it := range items {
		var disponivel int
		var nome string
		err := tx.QueryRow(ctx, `
			SELECT p.nome, e.quantidade - COALESCE((
				SELECT SUM(r.quantidade) FROM reservas_estoque r
				WHERE r.produto_id = e.produto_id AND r.status = 'ativa'
			), 0)
			FROM estoque e JOIN produtos p ON p.id = e.produto_id
			WHERE e.produto_id = $1
			FOR UPDATE OF e`, it.ProdutoID).Scan(&nome, &disponivel)
		if errors.Is(err, pgx.ErrNoRows) {
			faltas = append(faltas, Shortfall{ProdutoID: it.ProdutoID, Solicitado: it.Quantidade})
			continue
		}
		if err != nil {
			return nil, err
		}
		if disponivel < it.Quantidade {
			faltas = append(faltas, Shortfall{
				ProdutoID: it.ProdutoID, Nome: nome,
				Solicitado: it.Quantidade, Disponivel: disponivel,
			})
			continue
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO reservas_estoque (pedido_id, produto_id, quantidade, status)
			VALUES ($1, $2, $3, 'ativa')
			ON CONFLICT (pedido_id, produto_id) DO NOTHING`,
			pedidoID, it.ProdutoID, it.Quantidade); err != nil {
			return nil, err
		}
	}
	return faltas, nil
}

// ReleaseInTx frees the order's active reservations. Reports whether any
// row actually flipped, so callers can tell the client if stock came back.
func (l *Ledger) ReleaseInTx(ctx context.Context, tx pgx.Tx, pedidoID string) (bool, error) {
	ct, err := tx.Exec(ctx, `
		UPDATE reservas_estoque SET status = 'liberada'
		WHERE pedido_id = $1 AND status = 'ativa'`, pedidoID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// ConsumeInTx burns the order's reservations into the on-hand count: each
// reserved quantity is subtracted from estoque and the reservation is
// marked consumed. Products that hit zero flip to esgotado.
func (l *Ledger) ConsumeInTx(ctx context.Context, tx pgx.Tx, pedidoID string) error {
	rows, err := tx.Query(ctx, `
		SELECT produto_id, quantidade FROM reservas_estoque
		WHERE pedido_id = $1 AND status = 'ativa'
		FOR UPDATE`, pedidoID)
	if err != nil {
		return err
	}
	var items []ItemQtd
	for rows.Next() {
		var it ItemQtd
		if err := rows.Scan(&it.ProdutoID, &it.Quantidade); err != nil {
			rows.Close()
			return err
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			UPDATE estoque SET quantidade = quantidade - $2, atualizado_em = now()
			WHERE produto_id = $1`, it.ProdutoID, it.Quantidade); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE produtos SET status = 'esgotado'
			WHERE id = $1 AND (SELECT quantidade FROM estoque WHERE produto_id = $1) <= 0`,
			it.ProdutoID); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, `
		UPDATE reservas_estoque SET status = 'consumida'
		WHERE pedido_id = $1 AND status = 'ativa'`, pedidoID)
	return err
}

// InsufficientErr wraps a non-empty shortfall list in the transport error
// taxonomy.
func InsufficientErr(faltas []Shortfall) error {
	return apperr.WithDetail(apperr.KindInsufficientStock, "estoque insuficiente", faltas)
}
