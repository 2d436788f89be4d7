package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/seed"
	"github.com/safar/go-storefront/internal/session"
	"github.com/safar/go-storefront/internal/store"
	"github.com/safar/go-storefront/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert the schema",
	}

	for _, direction := range []string{migrations.Up, migrations.Down} {
		cmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: fmt.Sprintf("Run all %s migrations", direction),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := app.database()
				if err != nil {
					return err
				}

				applied, err := migrations.Run(cmd.Context(), db, direction)
				if err != nil {
					app.Log.Error("Migration failed", zap.String("direction", direction), zap.Error(err))
					return err
				}

				for _, name := range applied {
					fmt.Fprintf(app.Out, "applied %s\n", name)
				}
				app.Log.Info("Migrations complete", zap.String("direction", direction), zap.Int("count", len(applied)))
				return nil
			},
		})
	}

	return cmd
}

func newSeedCmd(app *App) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the default catalog and admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.database()
			if err != nil {
				return err
			}

			res, err := seed.Run(cmd.Context(), db, email, password, app.Log)
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "products inserted: %d\nadmin created: %t\n", res.ProductsInserted, res.AdminCreated)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "admin-email", seed.DefaultAdminEmail, "admin account email")
	cmd.Flags().StringVar(&password, "admin-password", seed.DefaultAdminPassword, "admin account password")

	return cmd
}

func newUserCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var email, password, role string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email required")
			}
			r := models.Role(role)
			if !r.Valid() {
				return fmt.Errorf("role must be %q or %q", models.RoleUser, models.RoleAdmin)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			db, err := app.database()
			if err != nil {
				return err
			}

			user, err := store.NewUserStore(db).CreateUser(cmd.Context(), email, hash, r)
			if err != nil {
				if errors.Is(err, database.ErrDuplicateEmail) {
					return fmt.Errorf("user %s already exists", email)
				}
				return err
			}

			app.Log.Info("User created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
			b, _ := json.MarshalIndent(user, "", "  ")
			fmt.Fprintln(app.Out, string(b))
			return nil
		},
	}
	createCmd.Flags().StringVar(&email, "email", "", "email")
	createCmd.Flags().StringVar(&password, "password", "", "password")
	createCmd.Flags().StringVar(&role, "role", string(models.RoleUser), "role: user|admin")

	var page, pageSize int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.database()
			if err != nil {
				return err
			}

			p, s := store.NormalizePage(page, pageSize)
			result, err := store.NewUserStore(db).ListUsers(cmd.Context(), p, s)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tCREATED")
			for _, u := range result.Items.([]models.User) {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.CreatedAt.Format("2006-01-02"))
			}
			fmt.Fprintf(tw, "page %d of %d (%d users)\n", result.Page, result.TotalPages, result.Total)
			return tw.Flush()
		},
	}
	listCmd.Flags().IntVar(&page, "page", 1, "page number")
	listCmd.Flags().IntVar(&pageSize, "page-size", 20, "users per page")

	cmd.AddCommand(createCmd, listCmd)
	return cmd
}

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage login sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.database()
			if err != nil {
				return err
			}

			sessions, closeSessions, err := session.New(cmd.Context(), app.Config, db)
			if err != nil {
				return err
			}
			defer closeSessions()

			svc := auth.NewService(store.NewUserStore(db), sessions, auth.WithLogger(app.Log))
			n, err := svc.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "purged %d expired sessions\n", n)
			return nil
		},
	})

	return cmd
}

func newProductsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect the catalog",
	}

	var output string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.database()
			if err != nil {
				return err
			}

			products, err := store.NewProductStore(db).ListProducts(cmd.Context())
			if err != nil {
				return err
			}

			if output == "json" {
				b, _ := json.MarshalIndent(products, "", "  ")
				fmt.Fprintln(app.Out, string(b))
				return nil
			}

			tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tCATEGORY")
			for _, p := range products {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock, p.Category)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().StringVar(&output, "output", "", "output format: json")

	cmd.AddCommand(listCmd)
	return cmd
}
