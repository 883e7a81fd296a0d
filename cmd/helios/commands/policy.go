package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/heliosquant/helios/internal/policyconfig"
	"github.com/heliosquant/helios/pkg/config"
)

// policyCmd groups policy file utilities
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy file utilities",
}

// policyCheckCmd validates a policy file without touching any store
var policyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a policy file",
	Long: `Loads and validates the policy file, printing its content hash.
Unknown fields, malformed thresholds and inconsistent caps are
reported as errors.

Example:
  go run ./cmd/helios policy check
  go run ./cmd/helios policy check --policy config/policy.yaml`,
	RunE: runPolicyCheck,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyCheckCmd)
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	path := policyFile
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.PolicyFile
	}

	policyCfg, _, err := policyconfig.Load(path)
	if err != nil {
		return fmt.Errorf("policy %s is invalid: %w", path, err)
	}

	hash, err := policyconfig.Hash(policyCfg)
	if err != nil {
		return fmt.Errorf("hash policy: %w", err)
	}

	p := &policyCfg.Policy

	fmt.Printf("Policy %s is valid\n", path)
	fmt.Printf("  policy_id:         %s\n", policyCfg.Meta.PolicyID)
	fmt.Printf("  hash:              %s\n", hash)
	fmt.Printf("  min_score:         %.1f\n", p.MinScoreThreshold)
	fmt.Printf("  max_position:      %.2f\n", p.MaxPositionWeight)
	fmt.Printf("  max_sector:        %.2f\n", p.MaxSectorWeight)
	fmt.Printf("  positions:         %d..%d\n", p.MinPositions, p.MaxPositions)
	if len(p.ExcludedSectors) > 0 {
		fmt.Printf("  excluded_sectors:  %v\n", p.ExcludedSectors)
	}

	agents := make([]string, 0, len(p.AgentWeights))
	for id := range p.AgentWeights {
		agents = append(agents, id)
	}
	sort.Strings(agents)
	fmt.Printf("  agents:\n")
	for _, id := range agents {
		fmt.Printf("    %-18s %.2f\n", id, p.AgentWeights[id])
	}
	return nil
}
