package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kidandcat/taskdesk/internal/db"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}
	cmd.AddCommand(newUserAddCmd(a), newUserListCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var (
		password string
		role     string
		branches []string
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user, or update the password, role and branches of an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := strings.TrimSpace(args[0])
			if username == "" {
				return fmt.Errorf("username is required")
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			created := false
			var finalRole string
			err = store.UpdateUsers(cmd.Context(), func(dir db.Directory) (bool, error) {
				u, ok := dir[username]
				if !ok {
					u = &db.User{Username: username, Tasks: []db.Task{}, PastTasks: []db.Task{}}
					dir[username] = u
					created = true
				}
				u.Password = password
				// Existing users keep role and branches unless the flags are given.
				if created || cmd.Flags().Changed("role") {
					u.Role = role
				}
				if created || cmd.Flags().Changed("branch") {
					u.Branches = cleanList(branches)
				}
				finalRole = u.Role
				return true, nil
			})
			if err != nil {
				return err
			}

			verb := "updated"
			if created {
				verb = "created"
			}
			a.log.WithField("user", username).Info("user " + verb)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ User %s %s (%s)\n", username, verb, finalRole)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	cmd.Flags().StringVarP(&role, "role", "r", "Worker", "Role, e.g. Owner, Leader, IT or Worker")
	cmd.Flags().StringSliceVarP(&branches, "branch", "b", nil, "Branch membership (repeatable or comma separated)")
	if err := cmd.MarkFlagRequired("password"); err != nil {
		panic(fmt.Sprintf("Failed to mark password flag as required: %v", err))
	}
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users with their role, branches and task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			dir, err := store.LoadUsers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USER\tROLE\tBRANCHES\tACTIVE\tDONE")
			for _, name := range dir.SortedNames() {
				u := dir[name]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", name, u.Role, strings.Join(u.Branches, ","), len(u.Tasks), len(u.PastTasks))
			}
			return tw.Flush()
		},
	}
}

func cleanList(items []string) []string {
	out := []string{}
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
