package notify

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const writeWait = 5 * time.Second

// Conn e o que o registro precisa de uma conexao viva; *websocket.Conn
// satisfaz.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type entry struct {
	connID string
	conn   Conn
	wmu    *sync.Mutex
}

// Registry mapeia usuario -> conexao viva, com ciclo de vida explicito.
// A copia autoritativa e chaveada pela identidade da conexao: se o usuario
// abre duas conexoes vale a ultima, e um Unregister tardio da conexao
// antiga nao derruba a nova.
type Registry struct {
	mu    sync.Mutex
	conns map[string]entry // usuarioID -> conexao
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]entry)}
}

// Register devolve o id da conexao, que deve ser passado de volta ao
// Unregister na desconexao.
func (r *Registry) Register(usuarioID string, c Conn) string {
	id := uuid.NewString()
	r.mu.Lock()
	old, had := r.conns[usuarioID]
	r.conns[usuarioID] = entry{connID: id, conn: c, wmu: &sync.Mutex{}}
	r.mu.Unlock()
	if had {
		_ = old.conn.Close()
	}
	return id
}

func (r *Registry) Unregister(usuarioID, connID string) {
	r.mu.Lock()
	if cur, ok := r.conns[usuarioID]; ok && cur.connID == connID {
		delete(r.conns, usuarioID)
	}
	r.mu.Unlock()
}

func (r *Registry) Connected(usuarioID string) bool {
	r.mu.Lock()
	_, ok := r.conns[usuarioID]
	r.mu.Unlock()
	return ok
}

// Send escreve na conexao viva do usuario, se houver. Falha de escrita e
// usuario offline sao tratados igual: a notificacao segue apenas no
// historico persistido. O mutex de escrita serializa chamadas de workers
// concorrentes: gorilla permite no maximo um escritor por conexao.
func (r *Registry) Send(usuarioID string, v any) bool {
	r.mu.Lock()
	e, ok := r.conns[usuarioID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	e.wmu.Lock()
	defer e.wmu.Unlock()
	_ = e.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := e.conn.WriteJSON(v); err != nil {
		log.Printf("notify: escrita websocket usuario=%s: %v", usuarioID, err)
		return false
	}
	return true
}
