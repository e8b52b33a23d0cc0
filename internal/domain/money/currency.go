package money

import "strings"

// DefaultExponent es el exponente de unidades menores para la mayoría de
// monedas ISO 4217 (EUR, USD, COP: 2 decimales).
const DefaultExponent int32 = 2

// zeroExponent monedas sin unidades menores.
var zeroExponent = map[string]struct{}{
	"JPY": {},
	"KRW": {},
	"CLP": {},
	"VND": {},
	"ISK": {},
}

// Exponent devuelve el exponente de unidades menores para un código de moneda.
func Exponent(currency string) int32 {
	if _, ok := zeroExponent[strings.ToUpper(currency)]; ok {
		return 0
	}
	return DefaultExponent
}
