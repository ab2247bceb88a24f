// Package reporter renders the grid plan as a console table before the
// trading loops start.
package reporter

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"

	"gridbot/internal/domain"
)

// PrintGridPlan writes one row per level with its zone, tier and the
// capital and quantity the bot will commit at that price.
func PrintGridPlan(w io.Writer, g *domain.Grid) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("grid plan %s", g.Pair.String())
	t.AppendHeader(table.Row{"#", "price", "zone", "tier", "capital", "buy qty"})

	total := decimal.Zero
	for i := range g.Levels {
		level := &g.Levels[i]
		total = total.Add(level.TargetCapital)

		buyQty := "-"
		if g.InAccumulationZone(level) {
			buyQty = g.BaseQuantity(level).Mul(level.Tier.QuantityScale()).Round(8).String()
		}

		t.AppendRow(table.Row{
			i + 1,
			level.Price.Round(8).String(),
			level.Zone.String(),
			tierLabel(level),
			level.TargetCapital.Round(2).String(),
			buyQty,
		})
	}

	t.AppendFooter(table.Row{"", "", "", "total", total.Round(2).String(), ""})
	t.SetStyle(table.StyleLight)
	t.Render()
}

// PrintSessionStatus writes the live view of the book: holding state,
// attributed position and resting order ids per level.
func PrintSessionStatus(w io.Writer, g *domain.Grid, snap domain.BookSnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("session %s", g.Pair.String())
	t.AppendHeader(table.Row{"#", "price", "state", "position", "buy order", "sell order"})

	total := decimal.Zero
	for i := range g.Levels {
		level := &g.Levels[i]
		st, ok := snap.States[level.Price.String()]
		if !ok {
			continue
		}
		total = total.Add(st.Position)

		t.AppendRow(table.Row{
			i + 1,
			level.Price.Round(8).String(),
			st.Holding.String(),
			st.Position.Round(8).String(),
			orDash(st.BuyOrderID),
			orDash(st.SellOrderID),
		})
	}

	t.AppendFooter(table.Row{"", "", "total", total.Round(8).String(), "", ""})
	t.SetStyle(table.StyleLight)
	t.Render()
}

func orDash(id string) string {
	if id == "" {
		return "-"
	}
	return id
}

func tierLabel(level *domain.GridLevel) string {
	if level.Zone != domain.ZoneAccumulation {
		return "-"
	}
	switch level.Tier {
	case domain.TierAggressive:
		return "aggressive x1.5"
	case domain.TierEnhanced:
		return "enhanced x1.2"
	default:
		return "base x1.0"
	}
}
