package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/agentgov/internal/policy"
)

// policyCmd groups policy operations
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy file operations",
}

// policyValidateCmd validates a policy file offline
var policyValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a policy file and print its rules hash",
	Long: `Parse and validate a JSONC policy file offline and print the
canonical rules hash the daemon would compute for it.

Examples:
  # Validate a session policy
  govctl policy validate policies/session-abc.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyValidate,
}

func init() {
	policyCmd.AddCommand(policyValidateCmd)
}

// runPolicyValidate handles the policy validate command
func runPolicyValidate(cmd *cobra.Command, args []string) error {
	doc, err := policy.Load(args[0])
	if err != nil {
		return fmt.Errorf("policy invalid: %w", err)
	}

	hash, err := doc.RulesHash()
	if err != nil {
		return fmt.Errorf("failed to compute rules hash: %w", err)
	}

	fmt.Printf("Policy OK\n")
	fmt.Printf("Session ID:   %s\n", doc.SessionID)
	fmt.Printf("Rule Version: %s\n", doc.RuleVersion)
	fmt.Printf("Rules Hash:   %s\n", hash)
	return nil
}
