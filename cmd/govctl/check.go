package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgov/internal/static"
)

// checkCmd runs the static checker offline
var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Run the static policy checks on a file or stdin",
	Long: `Run the zero-cost static checks (hardcoded secrets, sleep-in-loop,
unbounded loops) on a file or stdin, without a running daemon.

Exits non-zero when violations are found.

Examples:
  # Check a file
  govctl check worker_output.py

  # Check from stdin
  cat worker_output.py | govctl check -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

// runCheck handles the check command
func runCheck(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error

	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}

	checker, err := static.New(nil, zap.NewNop())
	if err != nil {
		return fmt.Errorf("failed to create checker: %w", err)
	}

	violations := checker.Check(string(content))
	if len(violations) == 0 {
		fmt.Println("No violations found")
		return nil
	}

	for _, v := range violations {
		fmt.Printf("line %d: %s: %s\n", v.Line, v.Key, v.Detail)
		if v.Evidence != "" {
			fmt.Printf("  evidence: %s\n", v.Evidence)
		}
	}
	return fmt.Errorf("%d violation(s) found", len(violations))
}
