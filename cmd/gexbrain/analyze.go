package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbrain/internal/config"
	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/regime"
)

func analyzeCmd() *cobra.Command {
	var asJSON bool
	var expiries int

	cmd := &cobra.Command{
		Use:   "analyze [tickers...]",
		Short: "Run a one-shot gamma exposure analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()

			tickers := args
			if len(tickers) == 0 {
				tickers = cfg.Tickers
			}
			for _, t := range tickers {
				if !config.ValidTickers[t] {
					return fmt.Errorf("unknown ticker: %s", t)
				}
			}

			provider := newProvider(cfg, logger)
			engine := gex.NewEngine(provider, gexConfig(cfg), logger)

			for _, ticker := range tickers {
				summary, err := engine.Analyze(cmd.Context(), ticker, gex.Options{IncludeExpiries: expiries})
				if err != nil {
					logger.Error("analysis failed", zap.String("ticker", ticker), zap.Error(err))
					continue
				}

				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					if err := enc.Encode(summary); err != nil {
						return err
					}
					continue
				}

				printSummary(summary)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full summary as JSON")
	cmd.Flags().IntVar(&expiries, "expiries", 0, "number of expirations to include (0 uses config)")
	return cmd
}

func printSummary(s *gex.Summary) {
	fmt.Printf("%s  spot %.2f\n", s.Ticker, s.Spot)
	fmt.Printf("  net GEX: $%.1fM  regime: %s (%.0f%%)\n",
		s.Aggregation.TotalNetGEX/1e6, s.Regime.Label, s.Regime.Confidence*100)
	if s.Regime.Warning != "" {
		fmt.Printf("  warning: %s\n", s.Regime.Warning)
	}

	if zr, err := regime.Resolve(s, regime.HorizonZeroDTE); err == nil {
		fmt.Printf("  0DTE: %s (%.0f%%)", zr.Label, zr.Confidence*100)
		if zr.Warning != "" {
			fmt.Printf("  [%s]", zr.Warning)
		}
		fmt.Println()
	}

	if s.GammaFlip != nil {
		fmt.Printf("  gamma flip: %.2f\n", *s.GammaFlip)
	}
	for _, w := range s.Walls.CallWalls {
		fmt.Printf("  call wall %.2f  $%.1fM%s\n", w.Strike, w.NetGEX/1e6, stackedTag(w))
	}
	for _, w := range s.Walls.PutWalls {
		fmt.Printf("  put wall  %.2f  $%.1fM%s\n", w.Strike, w.NetGEX/1e6, stackedTag(w))
	}

	if len(s.Playbook) > 0 {
		fmt.Printf("  playbook:\n    %s\n", strings.Join(s.Playbook, "\n    "))
	}
}

func stackedTag(w gex.Wall) string {
	if w.Stacked {
		return fmt.Sprintf("  (stacked x%d)", w.ExpiryCount)
	}
	return ""
}
