package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/nzoagro/backend/internal/apperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr mapeia a taxonomia de erros para HTTP. Faltas de estoque saem
// com a chave itemizada que o cliente usa para re-renderizar o carrinho.
func writeErr(w http.ResponseWriter, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		log.Printf("httpx: erro interno: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"erro": "erro interno"})
		return
	}

	body := map[string]any{"erro": e.Msg}
	if e.Detail != nil {
		if e.Kind == apperr.KindInsufficientStock {
			body["produtos_sem_estoque"] = e.Detail
		} else {
			body["detalhes"] = e.Detail
		}
	}
	writeJSON(w, apperr.HTTPStatus(e.Kind), body)
}
