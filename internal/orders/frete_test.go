package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalcFrete(t *testing.T) {
	cases := []struct {
		peso     float64
		base     int64
		comissao int64
	}{
		{5, 0, 0},
		{9.99, 0, 0},
		{10, 10000, 1000},
		{25, 10000, 1000},
		{30, 10000, 1000},
		{31, 15000, 1500},
		{50, 15000, 1500},
		{70, 20000, 2000},
		{100, 25000, 2500},
		{300, 35000, 3500},
		{500, 50000, 5000},
		{1000, 80000, 8000},
		{1001, 120000, 12000},
		{2000, 120000, 12000},
		{2001, 0, 0},
	}
	for _, c := range cases {
		f := CalcFrete(c.peso)
		assert.Equal(t, c.base, f.Base, "peso=%v", c.peso)
		assert.Equal(t, c.comissao, f.Comissao, "peso=%v", c.peso)
	}
}

func TestTotalPedido(t *testing.T) {
	// carrinho de exemplo: 5 unidades a 1000, 2kg cada -> 10kg de frete
	f := CalcFrete(10)
	assert.Equal(t, int64(16000), TotalPedido(5000, f))

	// sem frete
	assert.Equal(t, int64(5000), TotalPedido(5000, CalcFrete(5)))

	// arredonda para a unidade inteira da moeda
	assert.Equal(t, int64(16100), TotalPedido(5060, f))
	assert.Equal(t, int64(16000), TotalPedido(5040, f))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.0, Round2(2.0*5))
	assert.Equal(t, 0.67, Round2(0.6666))
}
