package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/gexbrain/internal/config"
	"github.com/dgnsrekt/gexbrain/internal/decision"
	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/market"
	"github.com/dgnsrekt/gexbrain/internal/store"
)

func decideCmd() *cobra.Command {
	var (
		asJSON bool
		macro  string
		strike float64
		delta  float64
		bid    float64
		ask    float64
	)

	cmd := &cobra.Command{
		Use:   "decide <ticker>",
		Short: "Run a one-shot trade decision through the gate hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()

			ticker := args[0]
			if !config.ValidTickers[ticker] {
				return fmt.Errorf("unknown ticker: %s", ticker)
			}

			macroInput, err := parseMacro(macro)
			if err != nil {
				return err
			}

			provider := newProvider(cfg, logger)
			gexEngine := gex.NewEngine(provider, gexConfig(cfg), logger)
			clock := market.NewClock(cfg.Market.Timezone, cfg.Market.OpenSkip())

			engine, err := decision.NewEngine(clock, decisionConfig(cfg), store.NewMemory(), logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			summary, err := gexEngine.Analyze(ctx, ticker, gex.Options{})
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", ticker, err)
			}

			bars, err := provider.FetchIntradayBars(ctx, ticker, "5m", 78)
			if err != nil {
				return fmt.Errorf("fetching bars for %s: %w", ticker, err)
			}

			input := decision.Input{
				Ticker:  ticker,
				Now:     time.Now().UTC(),
				Spot:    summary.Spot,
				Bars:    bars,
				Summary: summary,
				Macro:   macroInput,
			}
			if strike > 0 {
				input.Contract = &decision.ContractInput{
					Strike: strike,
					Delta:  delta,
					Bid:    bid,
					Ask:    ask,
				}
			}

			result, err := engine.Evaluate(input, nil)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Print(decision.FormatRationale(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().StringVar(&macro, "macro", "", "macro regime override (risk_on, risk_off, cautious)")
	cmd.Flags().Float64Var(&strike, "strike", 0, "candidate contract strike")
	cmd.Flags().Float64Var(&delta, "delta", 0, "candidate contract delta")
	cmd.Flags().Float64Var(&bid, "bid", 0, "candidate contract bid")
	cmd.Flags().Float64Var(&ask, "ask", 0, "candidate contract ask")
	return cmd
}

func parseMacro(s string) (*decision.MacroInput, error) {
	if s == "" {
		return nil, nil
	}
	switch strings.ToLower(s) {
	case "risk_on":
		return &decision.MacroInput{Regime: decision.MacroRiskOn}, nil
	case "risk_off":
		return &decision.MacroInput{Regime: decision.MacroRiskOff}, nil
	case "cautious":
		return &decision.MacroInput{Regime: decision.MacroCautious}, nil
	default:
		return nil, fmt.Errorf("unknown macro regime: %s", s)
	}
}

func decisionConfig(cfg *config.Config) decision.Config {
	c := decision.DefaultConfig()
	if cfg.Decision.MaxSpreadPct > 0 {
		c.MaxSpreadPct = cfg.Decision.MaxSpreadPct
	}
	if cfg.Decision.MinConviction > 0 {
		c.MinConviction = cfg.Decision.MinConviction
	}
	if cfg.Decision.MaxTradesPerHour > 0 {
		c.MaxTradesPerHour = cfg.Decision.MaxTradesPerHour
	}
	if cfg.Decision.ConsecutiveLossLimit > 0 {
		c.ConsecutiveLossLimit = cfg.Decision.ConsecutiveLossLimit
	}
	if cfg.Decision.LossCooldownMin > 0 {
		c.LossCooldown = time.Duration(cfg.Decision.LossCooldownMin) * time.Minute
	}
	if cfg.Decision.DeltaMin > 0 {
		c.DeltaMin = cfg.Decision.DeltaMin
	}
	if cfg.Decision.DeltaMax > 0 {
		c.DeltaMax = cfg.Decision.DeltaMax
	}
	if cfg.Decision.MaxStrikeDistancePct > 0 {
		c.MaxStrikeDistancePct = cfg.Decision.MaxStrikeDistancePct
	}
	if cfg.Decision.PremiumStopPct > 0 {
		c.PremiumStopPct = cfg.Decision.PremiumStopPct
	}
	if cfg.Decision.TimeStopMinutes > 0 {
		c.TimeStopMinutes = cfg.Decision.TimeStopMinutes
	}
	return c
}
