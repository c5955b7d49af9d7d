package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"portfolioSwap/internal/actions"
)

func runSelector(cmd *cobra.Command, args []string) error {
	for _, sig := range args {
		sig = strings.TrimSpace(sig)
		if sig == "" || !strings.Contains(sig, "(") || !strings.HasSuffix(sig, ")") {
			return fmt.Errorf("invalid signature: %q", sig)
		}
		sel := actions.Selector(sig)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", hexutil.Encode(sel[:]), sig)
	}
	return nil
}
