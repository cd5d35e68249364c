package main

import (
	"context"
	"fmt"

	"github.com/altmarket/digitalstore/internal/domain/catalog"
	"github.com/altmarket/digitalstore/internal/infrastructure/jsonfile"
	"github.com/spf13/cobra"
)

func productsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect and edit the product catalog",
	}
	cmd.AddCommand(productsListCmd())
	cmd.AddCommand(productsAddCmd())
	cmd.AddCommand(productsUpdateCmd())
	cmd.AddCommand(productsDeleteCmd())
	return cmd
}

func catalogStore(cmd *cobra.Command) *jsonfile.CatalogStore {
	path, _ := cmd.Flags().GetString("products")
	return jsonfile.NewCatalogStore(path)
}

func productsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all products in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := catalogStore(cmd)
			products, err := store.List(context.Background())
			if err != nil {
				return err
			}
			if len(products) == 0 {
				fmt.Println("catalog is empty")
				return nil
			}
			for _, p := range products {
				fmt.Printf("%-20s %-30s %10s  %s\n", p.ID, p.Name, p.Price, p.Filename)
			}
			return nil
		},
	}
}

func productFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Product name")
	cmd.Flags().String("price", "", "Price formatted as NN.NN")
	cmd.Flags().String("filename", "", "Downloadable filename")
	cmd.Flags().String("text", "", "Short tagline")
	cmd.Flags().String("image", "", "Image path or URL")
	cmd.Flags().String("description", "", "Long description")
}

func productsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [id]",
		Short: "Add a product to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := catalog.Product{ID: args[0]}
			p.Name, _ = cmd.Flags().GetString("name")
			p.Price, _ = cmd.Flags().GetString("price")
			p.Filename, _ = cmd.Flags().GetString("filename")
			p.Text, _ = cmd.Flags().GetString("text")
			p.Image, _ = cmd.Flags().GetString("image")
			p.Description, _ = cmd.Flags().GetString("description")

			if err := catalogStore(cmd).Create(context.Background(), p); err != nil {
				return err
			}
			fmt.Printf("added product %q\n", p.ID)
			return nil
		},
	}
	productFlags(cmd)
	return cmd
}

func productsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update fields of an existing product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := catalogStore(cmd)
			p, err := store.Get(context.Background(), args[0])
			if err != nil {
				return err
			}

			// Only flags the caller actually set override existing values.
			if cmd.Flags().Changed("name") {
				p.Name, _ = cmd.Flags().GetString("name")
			}
			if cmd.Flags().Changed("price") {
				p.Price, _ = cmd.Flags().GetString("price")
			}
			if cmd.Flags().Changed("filename") {
				p.Filename, _ = cmd.Flags().GetString("filename")
			}
			if cmd.Flags().Changed("text") {
				p.Text, _ = cmd.Flags().GetString("text")
			}
			if cmd.Flags().Changed("image") {
				p.Image, _ = cmd.Flags().GetString("image")
			}
			if cmd.Flags().Changed("description") {
				p.Description, _ = cmd.Flags().GetString("description")
			}

			if err := store.Update(context.Background(), p); err != nil {
				return err
			}
			fmt.Printf("updated product %q\n", p.ID)
			return nil
		},
	}
	productFlags(cmd)
	return cmd
}

func productsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Remove a product from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := catalogStore(cmd).Delete(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted product %q\n", args[0])
			return nil
		},
	}
}
