package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"guild-economy/internal/client"
	"guild-economy/internal/config"
	"guild-economy/internal/economy"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.LoadCLI()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Operate the guild economy ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "ledger API base URL")
	root.PersistentFlags().StringVar(&cfg.Realm, "realm", cfg.Realm, "realm (guild) id")
	root.PersistentFlags().StringVar(&cfg.Actor, "actor", cfg.Actor, "operator name recorded on admin entries")

	root.AddCommand(
		newBalanceCmd(&cfg),
		newLedgerCmd(&cfg),
		newRankCmd(&cfg),
		newAdjustCmd(&cfg),
		newResetCooldownCmd(&cfg),
		newConfigCmd(&cfg),
		newAuditCmd(&cfg),
		newInstrumentsCmd(&cfg),
		newReloadCatalogCmd(&cfg),
		newSweepCmd(&cfg),
	)

	if err := root.Execute(); err != nil {
		printError(fmt.Sprintf("error: %v", err))
		os.Exit(1)
	}
}

func newClient(cfg *config.CLIConfig) *client.Client {
	c := client.New(strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"), cfg.APIKey, cfg.AdminAPIKey)
	c.Actor = cfg.Actor
	return c
}

func requireRealm(cfg *config.CLIConfig) error {
	if strings.TrimSpace(cfg.Realm) == "" {
		return fmt.Errorf("--realm or LEDGER_REALM is required")
	}
	return nil
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newBalanceCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRealm(cfg); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			bal, err := newClient(cfg).Balance(ctx, cfg.Realm, args[0])
			if err != nil {
				return err
			}
			accent.Printf("%s/%s\n", cfg.Realm, args[0])
			fmt.Printf("Balance: %s\n", formatAmount(bal))
			return nil
		},
	}
}

func newLedgerCmd(cfg *config.CLIConfig) *cobra.Command {
	var (
		account string
		kind    string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List ledger entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRealm(cfg); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			entries, err := newClient(cfg).Ledger(ctx, cfg.Realm, account, kind, limit)
			if err != nil {
				return err
			}
			renderLedger(entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "filter by account")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by entry kind")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries")
	return cmd
}

func newRankCmd(cfg *config.CLIConfig) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Show the richest accounts in a realm",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRealm(cfg); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			rows, err := newClient(cfg).Rank(ctx, cfg.Realm, limit)
			if err != nil {
				return err
			}
			renderRank(cfg.Realm, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "rows to show (max 100)")
	return cmd
}

func newAdjustCmd(cfg *config.CLIConfig) *cobra.Command {
	var (
		reason    string
		requestID string
	)
	cmd := &cobra.Command{
		Use:   "adjust <account> <set|add|sub> <amount>",
		Short: "Set, add to or subtract from a balance",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRealm(cfg); err != nil {
				return err
			}
			amount, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[2])
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			res, err := newClient(cfg).Adjust(ctx, cfg.Realm, args[0], args[1], amount, reason, requestID)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s %s: delta %s, balance %s", args[1], args[0], formatSigned(res.Delta), formatAmount(res.NewBalance)))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the entry")
	cmd.Flags().StringVar(&requestID, "request-id", "", "idempotency key (generated when empty)")
	return cmd
}

func newResetCooldownCmd(cfg *config.CLIConfig) *cobra.Command {
	var (
		scope  string
		reason string
	)
	cmd := &cobra.Command{
		Use:   "reset-cooldown [account]",
		Short: "Clear claim/daily cooldowns for one account or the whole realm",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRealm(cfg); err != nil {
				return err
			}
			account := ""
			if len(args) == 1 {
				account = args[0]
			} else {
				printWarn("No account given; resetting the whole realm.")
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			res, err := newClient(cfg).ResetCooldown(ctx, cfg.Realm, account, scope, reason)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Cleared cooldowns on %v account(s).", res.Outcome["cleared"]))
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "all", "all, claim or daily")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the entries")
	return cmd
}

func newConfigCmd(cfg *config.CLIConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change realm settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show realm settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRealm(cfg); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			gc, err := newClient(cfg).GetConfig(ctx, cfg.Realm)
			if err != nil {
				return err
			}
			renderGuildConfig(gc)
			return nil
		},
	})

	var (
		minWager     int64
		winLo, winHi int
		mode         string
		force        string
		forceAccount string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change realm settings; unset flags keep their value",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRealm(cfg); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			c := newClient(cfg)
			gc, err := c.GetConfig(ctx, cfg.Realm)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("min-wager") {
				gc.MinWager = minWager
			}
			if flags.Changed("win-lo-bps") {
				gc.WinLoBPS = winLo
			}
			if flags.Changed("win-hi-bps") {
				gc.WinHiBPS = winHi
			}
			if flags.Changed("mode") {
				gc.ModeLabel = mode
			}
			if flags.Changed("force") {
				gc.ForceMode = economy.ForceMode(force)
			}
			if flags.Changed("force-account") {
				gc.ForceAccount = forceAccount
			}
			gc.Realm = cfg.Realm
			if err := gc.Validate(); err != nil {
				return err
			}
			if _, err := c.PutConfig(ctx, gc); err != nil {
				return err
			}
			printSuccess("Realm settings updated.")
			renderGuildConfig(gc)
			return nil
		},
	}
	set.Flags().Int64Var(&minWager, "min-wager", 0, "minimum wager")
	set.Flags().IntVar(&winLo, "win-lo-bps", 0, "lower bound of the win probability window, basis points")
	set.Flags().IntVar(&winHi, "win-hi-bps", 0, "upper bound of the win probability window, basis points")
	set.Flags().StringVar(&mode, "mode", "", "mode label shown to players")
	set.Flags().StringVar(&force, "force", "", "off, force-success or force-fail")
	set.Flags().StringVar(&forceAccount, "force-account", "", "limit the forced outcome to one account")
	cmd.AddCommand(set)
	return cmd
}

func newAuditCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check every balance against its ledger chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRealm(cfg); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			report, err := newClient(cfg).Audit(ctx, cfg.Realm)
			if err != nil {
				return err
			}
			if report.OK {
				printSuccess("Ledger consistent.")
				return nil
			}
			printError(fmt.Sprintf("%d discrepancies:", len(report.Discrepancies)))
			for _, d := range report.Discrepancies {
				fmt.Printf("  %v\n", d)
			}
			return fmt.Errorf("audit failed")
		},
	}
}

func newInstrumentsCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "instruments",
		Short: "List market instruments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			items, err := newClient(cfg).Instruments(ctx)
			if err != nil {
				return err
			}
			renderInstruments(items)
			return nil
		},
	}
}

func newReloadCatalogCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "reload-catalog",
		Short: "Reload instrument and ladder tables on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if err := newClient(cfg).ReloadCatalog(ctx); err != nil {
				return err
			}
			printSuccess("Catalog reloaded.")
			return nil
		},
	}
}

func newSweepCmd(cfg *config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-locks",
		Short: "Refund and clear expired in-flight actions now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			n, err := newClient(cfg).SweepLocks(ctx)
			if err != nil {
				return err
			}
			printInfo(fmt.Sprintf("Cleared %d expired lock(s).", n))
			return nil
		},
	}
}
