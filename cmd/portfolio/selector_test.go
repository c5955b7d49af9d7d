package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

func TestRunSelector(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runSelector(cmd, []string{"transfer(address,uint256)"}); err != nil {
		t.Fatalf("selector: %v", err)
	}
	if got, want := out.String(), "0xa9059cbb\ttransfer(address,uint256)\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if err := runSelector(cmd, []string{"transfer"}); err == nil {
		t.Fatal("expected invalid signature error")
	}
}
