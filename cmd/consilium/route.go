package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anthropics/consilium-engine/internal/ledger"
	"github.com/anthropics/consilium-engine/internal/router"
)

func routeCmd() *cobra.Command {
	var emitJSON bool
	var logPath string

	cmd := &cobra.Command{
		Use:   "route [query]",
		Short: "Route a request to specialist domains",
		Long: `Matches the query against the trigger catalog and prints the
routing decision: mode, agent set, and per-domain confidence. With
--log the derived decision event is appended to the ledger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			r := router.New(cfg.Catalog, cfg.Thresholds.EscalationConf)
			res := r.Route(args[0])

			if emitJSON {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				fmt.Printf("mode: %s\n", res.Mode)
				fmt.Printf("agents: %s\n", strings.Join(res.Agents, ", "))
				fmt.Printf("confidence: %.2f\n", res.Confidence)
				fmt.Printf("domains_matched: %d\n", res.DomainsMatched)
				if res.Downgraded {
					fmt.Println("downgraded: true")
				}
				fmt.Printf("reason: %s\n", res.Reason)
			}

			if logPath != "" {
				l := ledger.New(logPath, log)
				l.MaxBytes = cfg.Thresholds.MaxLedgerBytes
				appended, err := l.Append(router.ToEvent(res))
				if err != nil {
					return fmt.Errorf("append decision event: %w", err)
				}
				if !appended {
					log.Info("duplicate decision event suppressed")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&emitJSON, "emit-json", false, "print the full routing result as JSON")
	cmd.Flags().StringVar(&logPath, "log", "", "append the decision event to this ledger file")
	return cmd
}
