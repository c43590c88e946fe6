package main

import (
	"github.com/spf13/cobra"

	"specimentrack/internal/core"
)

func (a *app) projectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and inspect projects",
	}

	var (
		name         string
		roleID       int64
		sampleTypeID int64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project guarded by a role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := core.ProjectInput{Name: name, RoleID: a.codec.Encode(roleID)}
			if sampleTypeID > 0 {
				input.SampleTypeID = a.codec.Encode(sampleTypeID)
			}
			view, err := a.svc.CreateProject(cmd.Context(), input)
			if err != nil {
				return err
			}
			return a.print(view)
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	create.Flags().Int64Var(&roleID, "role-id", 0, "internal id of the role granted access")
	create.Flags().Int64Var(&sampleTypeID, "sample-type-id", 0, "internal id of the default sample type")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("role-id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			views, err := a.svc.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(views)
		},
	}

	show := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.svc.ShowProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(view)
		},
	}

	cmd.AddCommand(create, list, show)
	return cmd
}
