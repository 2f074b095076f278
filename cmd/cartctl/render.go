package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/cart"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Faint(true)
	totalStyle = lipgloss.NewStyle().Bold(true)
)

func renderCart(w io.Writer, state cart.State) {
	mode := "guest cart"
	if state.Authenticated {
		mode = "server cart"
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d %s)", mode, state.Count, plural(state.Count, "line", "lines"))))
	if len(state.Lines) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("empty"))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("LINE", "PRODUCT", "QTY", "PRICE", "SUBTOTAL", "OPTIONS")
	for _, line := range state.Lines {
		t.Row(
			string(line.ID),
			line.Product.Name,
			strconv.Itoa(line.Quantity),
			line.Product.Price.Format(),
			line.Subtotal().Format(),
			formatOptions(line.Options),
		)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, totalStyle.Render("Total: "+state.Lines.Total().Format()))
}

func renderSummary(w io.Writer, summary cart.Summary) {
	rows := []struct {
		label  string
		amount money.Amount
	}{
		{"Subtotal", summary.Subtotal},
		{"Shipping", summary.Shipping},
		{"Tax", summary.Tax},
	}
	for _, row := range rows {
		value := row.amount.Format()
		if row.label == "Shipping" && row.amount == 0 {
			value = "Free"
		}
		fmt.Fprintf(w, "%-10s %s\n", row.label, value)
	}
	fmt.Fprintln(w, totalStyle.Render(fmt.Sprintf("%-10s %s", "Total", summary.Total.Format())))
}

func formatOptions(options cart.Options) string {
	if len(options) == 0 {
		return ""
	}
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, options[key]))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
