package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/cart"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
)

func newShowCmd(current func() *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart lines and total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(current)
			if err != nil {
				return err
			}
			renderCart(cmd.OutOrStdout(), s.manager.State())
			return nil
		},
	}
}

func newAddCmd(current func() *session) *cobra.Command {
	var (
		name    string
		price   string
		image   string
		options map[string]string
	)
	cmd := &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add units of a product to the cart",
		Long: `Adds units of a product, merging with an existing line for the same product.

Guest carts store a product snapshot. Without --name and --price the snapshot is
looked up from the catalog.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(current)
			if err != nil {
				return err
			}
			quantity := 1
			if len(args) == 2 {
				if quantity, err = parseQuantity(args[1]); err != nil {
					return err
				}
			}
			productID := cart.ID(args[0])
			ctx := cmd.Context()

			var snapshot *cart.Product
			if !s.manager.State().Authenticated {
				product, err := resolveProduct(cmd, s, productID, name, price, image)
				if err != nil {
					return err
				}
				snapshot = &product
			}

			var lineOptions cart.Options
			if len(options) > 0 {
				lineOptions = make(cart.Options, len(options))
				for key, value := range options {
					lineOptions[key] = value
				}
			}
			if err := s.manager.AddLine(ctx, productID, quantity, lineOptions, snapshot); err != nil {
				return err
			}
			renderCart(cmd.OutOrStdout(), s.manager.State())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "product name for the guest snapshot")
	cmd.Flags().StringVar(&price, "price", "", "unit price for the guest snapshot, e.g. 35000.00")
	cmd.Flags().StringVar(&image, "image", "", "image URL for the guest snapshot")
	cmd.Flags().StringToStringVar(&options, "option", nil, "custom specification, repeatable (key=value)")
	return cmd
}

func resolveProduct(cmd *cobra.Command, s *session, productID cart.ID, name, price, image string) (cart.Product, error) {
	if name == "" && price == "" {
		product, err := s.client.Product(cmd.Context(), productID)
		if err != nil {
			return cart.Product{}, fmt.Errorf("look up product %s (pass --name and --price to skip): %w", productID, err)
		}
		return product, nil
	}
	if name == "" || price == "" {
		return cart.Product{}, errors.New("--name and --price must be given together")
	}
	amount, err := money.Parse(price)
	if err != nil {
		return cart.Product{}, fmt.Errorf("--price: %w", err)
	}
	return cart.Product{ID: productID, Name: name, Price: amount, Image: image}, nil
}

func newUpdateCmd(current func() *session) *cobra.Command {
	return &cobra.Command{
		Use:   "update <line-id> <quantity>",
		Short: "Set the quantity of a line; zero removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(current)
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity %q is not a number", args[1])
			}
			if err := s.manager.UpdateLine(cmd.Context(), cart.ID(args[0]), quantity); err != nil {
				return err
			}
			renderCart(cmd.OutOrStdout(), s.manager.State())
			return nil
		},
	}
}

func newRemoveCmd(current func() *session) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <line-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(current)
			if err != nil {
				return err
			}
			if err := s.manager.RemoveLine(cmd.Context(), cart.ID(args[0])); err != nil {
				return err
			}
			renderCart(cmd.OutOrStdout(), s.manager.State())
			return nil
		},
	}
}

func newClearCmd(current func() *session) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(current)
			if err != nil {
				return err
			}
			if err := s.manager.Clear(cmd.Context()); err != nil {
				return err
			}
			renderCart(cmd.OutOrStdout(), s.manager.State())
			return nil
		},
	}
}

func newLoginCmd(current func() *session) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Switch to the server cart, merging the guest cart into it",
		Long: `Replays every guest line onto the server cart and makes the server
authoritative. Requires a bearer token (--token or client.token). If the merge
stops partway the lines not yet merged stay in the guest cart; run login again
to resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(current)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := s.manager.SetAuthenticated(ctx, true); err != nil {
				return err
			}
			if err := s.remember(ctx, true); err != nil {
				return err
			}
			renderCart(cmd.OutOrStdout(), s.manager.State())
			return nil
		},
	}
}

func newLogoutCmd(current func() *session) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Switch back to an empty guest cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(current)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := s.manager.SetAuthenticated(ctx, false); err != nil {
				return err
			}
			if err := s.remember(ctx, false); err != nil {
				return err
			}
			renderCart(cmd.OutOrStdout(), s.manager.State())
			return nil
		},
	}
}

func newSummaryCmd(current func() *session) *cobra.Command {
	var (
		shipping string
		vat      int64
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print checkout totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireSession(current)
			if err != nil {
				return err
			}
			opts := cart.DefaultSummaryOptions()
			opts.VATBasisPoints = vat
			if shipping != "" {
				if opts.Shipping, err = money.Parse(shipping); err != nil {
					return fmt.Errorf("--shipping: %w", err)
				}
			}
			renderSummary(cmd.OutOrStdout(), cart.Summarize(s.manager.State().Lines, opts))
			return nil
		},
	}
	cmd.Flags().StringVar(&shipping, "shipping", "", "shipping cost (free by default)")
	cmd.Flags().Int64Var(&vat, "vat-bp", cart.DefaultVATBasisPoints, "VAT rate in basis points")
	return cmd
}

func parseQuantity(raw string) (int, error) {
	quantity, err := strconv.Atoi(raw)
	if err != nil || quantity < 1 {
		return 0, fmt.Errorf("quantity must be a positive number, got %q", raw)
	}
	return quantity, nil
}
