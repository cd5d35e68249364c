package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "storectl",
		Short:   "storectl - manage the digital store catalog and ledger",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("products", "data/products.json", "Path to the product catalog file")

	rootCmd.AddCommand(productsCmd())
	rootCmd.AddCommand(transactionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
