package view

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatPrice renders minor units in the given ISO currency, falling back to USD.
func FormatPrice(cents int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	return printer.Sprint(currency.Symbol(unit.Amount(float64(cents) / 100)))
}
