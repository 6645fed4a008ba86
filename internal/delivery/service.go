package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nzoagro/backend/internal/apperr"
	"github.com/nzoagro/backend/internal/notify"
)

type Repository interface {
	Existe(ctx context.Context, pedidoID string) (bool, error)
	Criar(ctx context.Context, e Entrega) (string, error)
	IniciarRota(ctx context.Context, pedidoID, transportadoraID string) (string, error)
	Finalizar(ctx context.Context, pedidoID, transportadoraID, obsFinais string, now time.Time) (string, error)
	GetFilial(ctx context.Context, filialID string) (Filial, error)
	GetTransportadora(ctx context.Context, id string) (Transportadora, error)
	CriarFilial(ctx context.Context, f Filial) error
	ListFiliais(ctx context.Context, transportadoraID string) ([]Filial, error)
}

type Notifier interface {
	Emit(ctx context.Context, ev notify.Evento)
}

// Service acompanha a entrega depois que o pedido sai do motor principal.
type Service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

type AtribuirInput struct {
	PedidoID    string
	FilialID    string
	Observacoes string
}

// Atribuir aceita o pedido para entrega: no maximo uma transportadora por
// pedido.
func (s *Service) Atribuir(ctx context.Context, transportadoraID string, in AtribuirInput) (*Entrega, error) {
	if strings.TrimSpace(in.PedidoID) == "" || strings.TrimSpace(in.FilialID) == "" {
		return nil, apperr.New(apperr.KindValidation, "pedidos_id e filial_retirada_id sao obrigatorios")
	}

	ja, err := s.repo.Existe(ctx, in.PedidoID)
	if err != nil {
		return nil, err
	}
	if ja {
		return nil, apperr.New(apperr.KindConflict, "pedido ja possui uma entrega atribuida")
	}

	filial, err := s.repo.GetFilial(ctx, in.FilialID)
	if err != nil {
		return nil, err
	}
	if filial.TransportadoraID != transportadoraID {
		return nil, apperr.New(apperr.KindForbidden, "filial pertence a outra transportadora")
	}

	e := Entrega{
		ID:               uuid.NewString(),
		PedidoID:         in.PedidoID,
		TransportadoraID: transportadoraID,
		FilialID:         in.FilialID,
		Estado:           EstadoAguardandoRetirada,
		Observacoes:      in.Observacoes,
		CriadoEm:         s.now(),
	}
	donoID, err := s.repo.Criar(ctx, e)
	if err != nil {
		return nil, err
	}

	transp, err := s.repo.GetTransportadora(ctx, transportadoraID)
	if err != nil {
		// dados de contacto sao so para a mensagem; nao desfaz a atribuicao
		transp = Transportadora{ID: transportadoraID, Nome: "transportadora"}
	}
	s.notifier.Emit(ctx, notify.Evento{
		UsuarioID: donoID,
		Categoria: notify.EventEntregaAtribuida,
		Titulo:    "Pedido aceito para entrega",
		Mensagem: fmt.Sprintf(
			"O seu pedido %s sera retirado na filial %s (%s). Transportadora: %s, contacto %s.",
			in.PedidoID, filial.Nome, filial.Endereco, transp.Nome, transp.Contacto),
		PedidoID: in.PedidoID,
	})
	return &e, nil
}

func (s *Service) IniciarRota(ctx context.Context, pedidoID, transportadoraID string) error {
	donoID, err := s.repo.IniciarRota(ctx, pedidoID, transportadoraID)
	if err != nil {
		return err
	}
	s.notifier.Emit(ctx, notify.Evento{
		UsuarioID: donoID,
		Categoria: notify.EventEntregaEmRota,
		Titulo:    "Pedido em rota",
		Mensagem:  fmt.Sprintf("O seu pedido %s saiu para entrega.", pedidoID),
		PedidoID:  pedidoID,
	})
	return nil
}

func (s *Service) Finalizar(ctx context.Context, pedidoID, transportadoraID, obsFinais string) error {
	donoID, err := s.repo.Finalizar(ctx, pedidoID, transportadoraID, obsFinais, s.now())
	if err != nil {
		return err
	}
	s.notifier.Emit(ctx, notify.Evento{
		UsuarioID: donoID,
		Categoria: notify.EventEntregaFinalizada,
		Titulo:    "Pedido entregue",
		Mensagem:  fmt.Sprintf("O seu pedido %s foi entregue.", pedidoID),
		PedidoID:  pedidoID,
	})
	return nil
}

func (s *Service) CriarFilial(ctx context.Context, transportadoraID, nome, endereco, contacto string) (*Filial, error) {
	if strings.TrimSpace(nome) == "" || strings.TrimSpace(endereco) == "" {
		return nil, apperr.New(apperr.KindValidation, "nome e endereco da filial sao obrigatorios")
	}
	f := Filial{
		ID:               uuid.NewString(),
		TransportadoraID: transportadoraID,
		Nome:             nome,
		Endereco:         endereco,
		Contacto:         contacto,
	}
	if err := s.repo.CriarFilial(ctx, f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Service) Filiais(ctx context.Context, transportadoraID string) ([]Filial, error) {
	return s.repo.ListFiliais(ctx, transportadoraID)
}
