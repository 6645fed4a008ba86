package orders

import "math"

// Frete em unidades menores da moeda, mesma base dos precos armazenados.
type Frete struct {
	Base     int64 `json:"frete"`
	Comissao int64 `json:"comissao"`
}

// CalcFrete e uma funcao pura do peso total (kg). Abaixo de 10kg ou acima
// de 2000kg nao ha cobertura de frete e o valor e zero.
func CalcFrete(pesoKg float64) Frete {
	if pesoKg < 10 || pesoKg > 2000 {
		return Frete{}
	}
	switch {
	case pesoKg <= 30:
		return Frete{Base: 10000, Comissao: 1000}
	case pesoKg <= 50:
		return Frete{Base: 15000, Comissao: 1500}
	case pesoKg <= 70:
		return Frete{Base: 20000, Comissao: 2000}
	case pesoKg <= 100:
		return Frete{Base: 25000, Comissao: 2500}
	case pesoKg <= 300:
		return Frete{Base: 35000, Comissao: 3500}
	case pesoKg <= 500:
		return Frete{Base: 50000, Comissao: 5000}
	case pesoKg <= 1000:
		return Frete{Base: 80000, Comissao: 8000}
	default:
		return Frete{Base: 120000, Comissao: 12000}
	}
}

// TotalPedido soma subtotal, frete e comissao e arredonda para a unidade
// inteira da moeda. Valores de linha ja sao exatos em unidades menores.
func TotalPedido(subtotal int64, f Frete) int64 {
	total := float64(subtotal+f.Base+f.Comissao) / 100
	return int64(math.Round(total)) * 100
}

// Round2 arredonda pesos a duas casas decimais.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
