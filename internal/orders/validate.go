package orders

import (
	"regexp"
	"strings"

	"github.com/nzoagro/backend/internal/apperr"
)

// contacto movel local: 9 digitos iniciando por 9
var reContacto = regexp.MustCompile(`^9[0-9]{8}$`)

// ValidarEndereco exige todos os campos do endereco menos a referencia,
// que e apenas um ponto de orientacao.
func ValidarEndereco(e Endereco) error {
	var faltam []string
	for _, c := range []struct{ nome, valor string }{
		{"rua", e.Rua},
		{"bairro", e.Bairro},
		{"pais", e.Pais},
		{"municipio", e.Municipio},
		{"provincia", e.Provincia},
		{"numero", e.Numero},
	} {
		if strings.TrimSpace(c.valor) == "" {
			faltam = append(faltam, c.nome)
		}
	}
	if len(faltam) > 0 {
		return apperr.WithDetail(apperr.KindValidation, "campos de endereco em falta", faltam)
	}
	if !reContacto.MatchString(e.Numero) {
		return apperr.New(apperr.KindValidation, "numero de contacto invalido: esperado 9 digitos iniciando por 9")
	}
	return nil
}
