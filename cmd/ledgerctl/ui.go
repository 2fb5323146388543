package main

import (
	"fmt"
	"strconv"
	"strings"

	"guild-economy/internal/client"
	"guild-economy/internal/economy"
	"guild-economy/internal/store"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

// formatAmount renders n with thousands separators.
func formatAmount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatSigned(n int64) string {
	if n > 0 {
		return "+" + formatAmount(n)
	}
	return formatAmount(n)
}

func deltaColor(n int64) *color.Color {
	switch {
	case n > 0:
		return success
	case n < 0:
		return danger
	default:
		return neutral
	}
}

func renderLedger(entries []store.LedgerEntry) {
	accent.Println("\n== LEDGER ==")
	if len(entries) == 0 {
		printInfo("No entries.")
		return
	}
	fmt.Printf("%-20s %-12s %-22s %14s %14s\n", "TIME", "ACCOUNT", "KIND", "DELTA", "BALANCE")
	for _, e := range entries {
		fmt.Printf("%-20s %-12s %-22s ", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Account, e.Kind)
		deltaColor(e.Delta).Printf("%14s", formatSigned(e.Delta))
		fmt.Printf(" %14s\n", formatAmount(e.BalanceAfter))
	}
}

func renderRank(realm string, rows []client.Ranked) {
	accent.Printf("\n== RANK (%s) ==\n", realm)
	if len(rows) == 0 {
		printInfo("No accounts yet.")
		return
	}
	for _, r := range rows {
		fmt.Printf("%3d. %-20s %16s\n", r.Rank, r.Account, formatAmount(r.Balance))
	}
}

func renderGuildConfig(gc economy.GuildConfig) {
	accent.Printf("\n== SETTINGS (%s) ==\n", gc.Realm)
	fmt.Printf("Min wager:   %s\n", formatAmount(gc.MinWager))
	fmt.Printf("Win window:  %.2f%% - %.2f%%\n", float64(gc.WinLoBPS)/100, float64(gc.WinHiBPS)/100)
	fmt.Printf("Mode label:  %s\n", gc.ModeLabel)
	if gc.ForceMode != economy.ForceOff && gc.ForceMode != "" {
		scope := "all accounts"
		if gc.ForceAccount != "" {
			scope = gc.ForceAccount
		}
		warn.Printf("Forced:      %s (%s)\n", gc.ForceMode, scope)
	}
}

func renderInstruments(items []client.Instrument) {
	accent.Println("\n== INSTRUMENTS ==")
	fmt.Printf("%-8s %-6s %-24s %10s\n", "SYMBOL", "KIND", "NAME", "EV %")
	for _, in := range items {
		fmt.Printf("%-8s %-6s %-24s ", in.Symbol, in.Kind, in.Name)
		ev := int64(in.DesignedEV * 1000)
		deltaColor(ev).Printf("%10.3f\n", in.DesignedEV)
	}
}
