package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nzoagro/backend/internal/apperr"
	"github.com/nzoagro/backend/internal/orders"
	"github.com/nzoagro/backend/internal/stock"
)

type Repo struct {
	DB     *pgxpool.Pool
	Ledger *stock.Ledger
}

func (r *Repo) Existe(ctx context.Context, pedidoID string) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM entregas WHERE pedido_id = $1`, pedidoID).Scan(&n)
	return n > 0, err
}

// Criar insere a entrega e avanca o pedido para processado. A restricao
// UNIQUE em pedido_id fecha a corrida que a checagem previa de existencia
// deixa aberta: duas atribuicoes concorrentes nunca gravam duas entregas.
func (r *Repo) Criar(ctx context.Context, e Entrega) (donoID string, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var estado orders.Estado
	err = tx.QueryRow(ctx, `
		SELECT usuario_id, estado FROM pedidos WHERE id = $1 FOR UPDATE`, e.PedidoID).
		Scan(&donoID, &estado)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.New(apperr.KindNotFound, "pedido nao encontrado")
	}
	if err != nil {
		return "", err
	}
	if estado != orders.EstadoConfirmado && estado != orders.EstadoProcessado {
		return "", apperr.Newf(apperr.KindInvalidState,
			"pedido em estado %s nao pode receber atribuicao de entrega", estado)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO entregas (id, pedido_id, transportadora_id, filial_id, estado,
		                      observacoes, criado_em)
		VALUES ($1, $2, $3, $4, 'aguardando_retirada', $5, $6)`,
		e.ID, e.PedidoID, e.TransportadoraID, e.FilialID, e.Observacoes, e.CriadoEm)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", apperr.New(apperr.KindConflict, "pedido ja possui uma entrega atribuida")
		}
		return "", err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE pedidos SET estado = 'processado' WHERE id = $1`, e.PedidoID); err != nil {
		return "", err
	}
	return donoID, tx.Commit(ctx)
}

func (r *Repo) lockEntrega(ctx context.Context, tx pgx.Tx, pedidoID, transportadoraID string) (Entrega, string, error) {
	var e Entrega
	err := tx.QueryRow(ctx, `
		SELECT id, pedido_id, transportadora_id, filial_id, estado, observacoes, criado_em
		FROM entregas WHERE pedido_id = $1 FOR UPDATE`, pedidoID).
		Scan(&e.ID, &e.PedidoID, &e.TransportadoraID, &e.FilialID, &e.Estado, &e.Observacoes, &e.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, "", apperr.New(apperr.KindNotFound, "entrega nao encontrada para este pedido")
	}
	if err != nil {
		return e, "", err
	}
	if e.TransportadoraID != transportadoraID {
		return e, "", apperr.New(apperr.KindForbidden, "entrega pertence a outra transportadora")
	}

	var donoID string
	if err := tx.QueryRow(ctx, `
		SELECT usuario_id FROM pedidos WHERE id = $1`, pedidoID).Scan(&donoID); err != nil {
		return e, "", err
	}
	return e, donoID, nil
}

// IniciarRota move a entrega de aguardando_retirada para em_rota e o
// pedido para enviado.
func (r *Repo) IniciarRota(ctx context.Context, pedidoID, transportadoraID string) (donoID string, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, donoID, err := r.lockEntrega(ctx, tx, pedidoID, transportadoraID)
	if err != nil {
		return "", err
	}
	if e.Estado != EstadoAguardandoRetirada {
		return "", apperr.Newf(apperr.KindInvalidState, "entrega em estado %s nao pode iniciar rota", e.Estado)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE entregas SET estado = 'em_rota' WHERE id = $1`, e.ID); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE pedidos SET estado = 'enviado' WHERE id = $1`, pedidoID); err != nil {
		return "", err
	}
	return donoID, tx.Commit(ctx)
}

// Finalizar fecha a entrega e o pedido e consome as reservas: so aqui o
// estoque em maos e de fato decrementado.
func (r *Repo) Finalizar(ctx context.Context, pedidoID, transportadoraID, obsFinais string, now time.Time) (donoID string, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, donoID, err := r.lockEntrega(ctx, tx, pedidoID, transportadoraID)
	if err != nil {
		return "", err
	}
	if e.Estado == EstadoEntregue {
		return "", apperr.New(apperr.KindInvalidState, "entrega ja finalizada")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE entregas SET estado = 'entregue', finalizado_em = $2, observacoes_finais = $3
		WHERE id = $1`, e.ID, now, obsFinais); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE pedidos SET estado = 'entregue' WHERE id = $1`, pedidoID); err != nil {
		return "", err
	}
	if err := r.Ledger.ConsumeInTx(ctx, tx, pedidoID); err != nil {
		return "", err
	}
	return donoID, tx.Commit(ctx)
}

func (r *Repo) GetFilial(ctx context.Context, filialID string) (Filial, error) {
	var f Filial
	err := r.DB.QueryRow(ctx, `
		SELECT id, transportadora_id, nome, endereco, contacto
		FROM filiais_transportadora WHERE id = $1`, filialID).
		Scan(&f.ID, &f.TransportadoraID, &f.Nome, &f.Endereco, &f.Contacto)
	if errors.Is(err, pgx.ErrNoRows) {
		return f, apperr.New(apperr.KindNotFound, "filial nao encontrada")
	}
	return f, err
}

func (r *Repo) GetTransportadora(ctx context.Context, id string) (Transportadora, error) {
	var t Transportadora
	err := r.DB.QueryRow(ctx, `
		SELECT id, nome, contacto FROM usuarios WHERE id = $1 AND papel = 'transportadora'`, id).
		Scan(&t.ID, &t.Nome, &t.Contacto)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, apperr.New(apperr.KindNotFound, "transportadora nao encontrada")
	}
	return t, err
}

func (r *Repo) CriarFilial(ctx context.Context, f Filial) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO filiais_transportadora (id, transportadora_id, nome, endereco, contacto)
		VALUES ($1, $2, $3, $4, $5)`,
		f.ID, f.TransportadoraID, f.Nome, f.Endereco, f.Contacto)
	return err
}

func (r *Repo) ListFiliais(ctx context.Context, transportadoraID string) ([]Filial, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, transportadora_id, nome, endereco, contacto
		FROM filiais_transportadora WHERE transportadora_id = $1
		ORDER BY nome`, transportadoraID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Filial
	for rows.Next() {
		var f Filial
		if err := rows.Scan(&f.ID, &f.TransportadoraID, &f.Nome, &f.Endereco, &f.Contacto); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
