package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/altmarket/digitalstore/internal/domain/ledger"
	"github.com/altmarket/digitalstore/internal/infrastructure/jsonfile"
	"github.com/altmarket/digitalstore/internal/infrastructure/sqlite"
	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Look up recorded purchase transactions",
	}
	cmd.PersistentFlags().String("ledger", "data/transactions.json", "Path to the transaction ledger")
	cmd.PersistentFlags().String("backend", "file", "Ledger backend: file or sqlite")

	cmd.AddCommand(transactionsGetCmd())
	cmd.AddCommand(transactionsLatestCmd())
	return cmd
}

func openLedger(cmd *cobra.Command) (ledger.Ledger, func(), error) {
	path, _ := cmd.Flags().GetString("ledger")
	backend, _ := cmd.Flags().GetString("backend")

	switch backend {
	case "sqlite":
		l, err := sqlite.OpenLedger(path)
		if err != nil {
			return nil, nil, err
		}
		return l, func() { _ = l.Close() }, nil
	case "file":
		l, err := jsonfile.OpenLedger(path)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

func printTransaction(tx ledger.Transaction) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(tx)
}

func transactionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [transaction-id]",
		Short: "Show a transaction by its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			led, closeFn, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			tx, err := led.FindByID(context.Background(), args[0])
			if err != nil {
				return err
			}
			printTransaction(tx)
			return nil
		},
	}
}

func transactionsLatestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show a buyer's most recent transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				return fmt.Errorf("--email is required")
			}

			led, closeFn, err := openLedger(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			tx, err := led.FindLatestByEmail(context.Background(), email)
			if err != nil {
				return err
			}
			printTransaction(tx)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Purchase email to search for")
	return cmd
}
