package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nzoagro/backend/internal/apperr"
)

type Notificacao struct {
	ID        string    `json:"id"`
	UsuarioID string    `json:"usuario_id"`
	Categoria string    `json:"categoria"`
	Titulo    string    `json:"titulo"`
	Mensagem  string    `json:"mensagem"`
	Lida      bool      `json:"lida"`
	CriadoEm  time.Time `json:"criado_em"`
}

// Store persiste o historico de notificacoes. Append-only, exceto a flag
// de leitura.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) Inserir(ctx context.Context, ev Evento) (Notificacao, error) {
	n := Notificacao{
		ID:        uuid.NewString(),
		UsuarioID: ev.UsuarioID,
		Categoria: ev.Categoria,
		Titulo:    ev.Titulo,
		Mensagem:  ev.Mensagem,
		CriadoEm:  time.Now().UTC(),
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO notificacoes (id, usuario_id, categoria, titulo, mensagem, lida, criado_em)
		VALUES ($1, $2, $3, $4, $5, false, $6)`,
		n.ID, n.UsuarioID, n.Categoria, n.Titulo, n.Mensagem, n.CriadoEm)
	return n, err
}

func (s *Store) Listar(ctx context.Context, usuarioID string, limit int) ([]Notificacao, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.DB.Query(ctx, `
		SELECT id, usuario_id, categoria, titulo, mensagem, lida, criado_em
		FROM notificacoes WHERE usuario_id = $1
		ORDER BY criado_em DESC LIMIT $2`, usuarioID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notificacao
	for rows.Next() {
		var n Notificacao
		if err := rows.Scan(&n.ID, &n.UsuarioID, &n.Categoria, &n.Titulo, &n.Mensagem, &n.Lida, &n.CriadoEm); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarcarLida vira a flag de nao lida para lida; so o destinatario pode.
func (s *Store) MarcarLida(ctx context.Context, id, usuarioID string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE notificacoes SET lida = true WHERE id = $1 AND usuario_id = $2`, id, usuarioID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "notificacao nao encontrada")
	}
	return nil
}

func (s *Store) ContarNaoLidas(ctx context.Context, usuarioID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM notificacoes WHERE usuario_id = $1 AND lida = false`, usuarioID).Scan(&n)
	return n, err
}
