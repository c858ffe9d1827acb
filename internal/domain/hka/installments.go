package hka

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
)

// Installment cuota calculada a partir del término de pago.
type Installment struct {
	ID      string // Cuota001, Cuota002, ...
	DueDate time.Time
	Amount  decimal.Decimal
}

// ComputeInstallments reparte net entre las líneas del término, ordenadas por
// desplazamiento en días (orden estable). La asignación es acumulativa:
// balance = net - lo ya asignado a cuotas anteriores.
func ComputeInstallments(term *entity.PaymentTerm, issue time.Time, net decimal.Decimal) []Installment {
	if term == nil || len(term.Lines) == 0 {
		return nil
	}
	lines := make([]entity.PaymentTermLine, len(term.Lines))
	copy(lines, term.Lines)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Days < lines[j].Days })

	out := make([]Installment, 0, len(lines))
	allocated := decimal.Zero
	for i, l := range lines {
		amount := installmentAmount(l, net, allocated)
		allocated = allocated.Add(amount)
		out = append(out, Installment{
			ID:      fmt.Sprintf("Cuota%03d", i+1),
			DueDate: addMonthsClamped(issue, l.Months).AddDate(0, 0, l.Days),
			Amount:  amount,
		})
	}
	return out
}

func installmentAmount(l entity.PaymentTermLine, net, allocated decimal.Decimal) decimal.Decimal {
	switch l.Value {
	case entity.TermValueBalance:
		return net.Sub(allocated)
	case entity.TermValuePercent:
		return net.Mul(l.ValueAmount).Div(hundred).Round(2)
	case entity.TermValueFixed:
		return l.ValueAmount.Round(2)
	default:
		return decimal.Zero
	}
}

// addMonthsClamped suma meses sin desbordar al mes siguiente: 31-ene + 1 mes = 28/29-feb.
func addMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
