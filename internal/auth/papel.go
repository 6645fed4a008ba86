package auth

import (
	"github.com/nzoagro/backend/internal/apperr"
)

// Papel is the closed set of account roles. Authorization decisions switch
// on this type, never on raw claim strings.
type Papel string

const (
	PapelComprador      Papel = "comprador"
	PapelAgricultor     Papel = "agricultor"
	PapelAdministrador  Papel = "administrador"
	PapelTransportadora Papel = "transportadora"
)

func ParsePapel(s string) (Papel, error) {
	switch Papel(s) {
	case PapelComprador, PapelAgricultor, PapelAdministrador, PapelTransportadora:
		return Papel(s), nil
	}
	return "", apperr.Newf(apperr.KindForbidden, "papel desconhecido: %q", s)
}

func (p Papel) IsAdmin() bool { return p == PapelAdministrador }
