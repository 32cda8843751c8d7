package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samhoque/apikit/internal/users"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List, show, create, update and delete users",
		Long: `Manage users. Reads are cached for the configured stale time and every
write invalidates the cached users queries.

Examples:
  apikit users list --page 2 --per-page 5
  apikit users get 1
  apikit users create --name "Ann Example" --username ann --email ann@example.com
  apikit users update 4 --phone 555-0100
  apikit users delete 4`,
	}
	cmd.AddCommand(newUsersListCmd())
	cmd.AddCommand(newUsersGetCmd())
	cmd.AddCommand(newUsersCreateCmd())
	cmd.AddCommand(newUsersUpdateCmd())
	cmd.AddCommand(newUsersDeleteCmd())
	return cmd
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func printUsers(w io.Writer, list []users.User) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tEMAIL")
	for _, u := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Username, u.Email)
	}
	tw.Flush()
}

func printUser(w io.Writer, u users.User) {
	fmt.Fprintf(w, "ID:       %d\n", u.ID)
	fmt.Fprintf(w, "Name:     %s\n", u.Name)
	fmt.Fprintf(w, "Username: %s\n", u.Username)
	fmt.Fprintf(w, "Email:    %s\n", u.Email)
	if u.Phone != "" {
		fmt.Fprintf(w, "Phone:    %s\n", u.Phone)
	}
	if u.Website != "" {
		fmt.Fprintf(w, "Website:  %s\n", u.Website)
	}
	if u.Address.City != "" {
		fmt.Fprintf(w, "City:     %s\n", u.Address.City)
	}
	if u.Company.Name != "" {
		fmt.Fprintf(w, "Company:  %s\n", u.Company.Name)
	}
}

func outputUser(cmd *cobra.Command, u users.User) {
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), u)
		return
	}
	printUser(cmd.OutOrStdout(), u)
}

func newUsersListCmd() *cobra.Command {
	var params users.ListParams
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := current.users.List(cmd.Context(), params)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), list)
				return nil
			}
			printUsers(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().IntVar(&params.Page, "page", users.DefaultPage, "Page number")
	cmd.Flags().IntVar(&params.PerPage, "per-page", users.DefaultPerPage, "Users per page")
	cmd.Flags().StringVarP(&params.Query, "query", "q", "", "Full-text filter")
	return cmd
}

func newUsersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			u, err := current.users.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			outputUser(cmd, u)
			return nil
		},
	}
}

func newUsersCreateCmd() *cobra.Command {
	var payload users.CreateUserPayload
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := current.users.Create(cmd.Context(), payload)
			if err != nil {
				return err
			}
			if !jsonOutput {
				okLabel.Fprintf(cmd.OutOrStdout(), "✓ Created user %d\n", u.ID)
			}
			outputUser(cmd, u)
			return nil
		},
	}
	cmd.Flags().StringVar(&payload.Name, "name", "", "Full name (required)")
	cmd.Flags().StringVar(&payload.Username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&payload.Email, "email", "", "Email (required)")
	cmd.Flags().StringVar(&payload.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&payload.Website, "website", "", "Website")
	return cmd
}

func newUsersUpdateCmd() *cobra.Command {
	var payload users.UpdateUserPayload
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update fields of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			payload.ID = id
			u, err := current.users.Update(cmd.Context(), payload)
			if err != nil {
				return err
			}
			if !jsonOutput {
				okLabel.Fprintf(cmd.OutOrStdout(), "✓ Updated user %d\n", u.ID)
			}
			outputUser(cmd, u)
			return nil
		},
	}
	cmd.Flags().StringVar(&payload.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&payload.Username, "username", "", "Username")
	cmd.Flags().StringVar(&payload.Email, "email", "", "Email")
	cmd.Flags().StringVar(&payload.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&payload.Website, "website", "", "Website")
	return cmd
}

func newUsersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := current.users.Delete(cmd.Context(), id); err != nil {
				return err
			}
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]any{"status": "success", "id": id})
			} else {
				okLabel.Fprintf(cmd.OutOrStdout(), "✓ Deleted user %d\n", id)
			}
			return nil
		},
	}
}
