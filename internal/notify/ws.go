package notify

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nzoagro/backend/internal/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler mantem uma conexao por usuario autenticado ate a desconexao.
type WSHandler struct {
	Registry *Registry
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	usuarioID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "nao autenticado", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := h.Registry.Register(usuarioID, conn)
	defer h.Registry.Unregister(usuarioID, connID)

	// o canal e so de saida; o loop de leitura existe para detectar o
	// fechamento pelo cliente
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
