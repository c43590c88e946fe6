package main

import (
	"errors"

	"github.com/spf13/cobra"

	"specimentrack/internal/core"
)

func (a *app) specimenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specimen",
		Short: "Create, inspect and update specimens",
	}
	cmd.AddCommand(a.specimenCreateCommand(), a.specimenListCommand(), a.specimenShowCommand(), a.specimenUpdateCommand())
	return cmd
}

func (a *app) specimenCreateCommand() *cobra.Command {
	var (
		input core.SpecimenInput
		set   map[string]string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a specimen, optionally derived from a parent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input.SampleData = sampleData(set)
			view, err := a.svc.CreateSpecimen(cmd.Context(), input)
			if err != nil {
				return err
			}
			return a.print(view)
		},
	}
	cmd.Flags().StringVar(&input.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&input.Barcode, "barcode", "", "specimen bar code, unique within the project")
	cmd.Flags().StringVar(&input.ParentID, "parent", "", "parent specimen id")
	cmd.Flags().StringVar(&input.State, "state", "", "initial state (default new)")
	cmd.Flags().StringVar(&input.Location, "location", "", "storage location")
	cmd.Flags().StringVar(&input.Type, "type", "", "sample type")
	cmd.Flags().StringToStringVar(&set, "set", nil, "sample data key=value pairs")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("barcode")
	return cmd
}

func (a *app) specimenListCommand() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's specimens by family",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			views, err := a.svc.ListSpecimens(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			return a.print(views)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func (a *app) specimenShowCommand() *cobra.Command {
	var projectID, barcode string
	cmd := &cobra.Command{
		Use:   "show [specimen-id]",
		Short: "Show a specimen with its lineage, by id or by project and bar code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				view core.SpecimenView
				err  error
			)
			switch {
			case len(args) == 1:
				view, err = a.svc.ShowSpecimen(cmd.Context(), args[0])
			case barcode == "":
				return errors.New("specimen id or --project and --barcode required")
			default:
				view, err = a.svc.FindSpecimen(cmd.Context(), projectID, barcode)
			}
			if err != nil {
				return err
			}
			return a.print(view)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id, with --barcode")
	cmd.Flags().StringVar(&barcode, "barcode", "", "bar code to look up, with --project")
	cmd.MarkFlagsRequiredTogether("project", "barcode")
	return cmd
}

func (a *app) specimenUpdateCommand() *cobra.Command {
	var (
		patch  core.SpecimenPatch
		set    map[string]string
		parent string
	)
	cmd := &cobra.Command{
		Use:   "update <specimen-id>",
		Short: "Update state, location, type or sample data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch.SampleData = sampleData(set)
			if parent != "" {
				if patch.SampleData == nil {
					patch.SampleData = map[string]any{}
				}
				patch.SampleData["parent_id"] = parent
			}
			view, err := a.svc.UpdateSpecimen(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return a.print(view)
		},
	}
	cmd.Flags().StringVar(&patch.State, "state", "", "new state")
	cmd.Flags().StringVar(&patch.Location, "location", "", "new storage location")
	cmd.Flags().StringVar(&patch.Type, "type", "", "new sample type")
	cmd.Flags().StringVar(&parent, "parent", "", "new parent specimen id")
	cmd.Flags().StringToStringVar(&set, "set", nil, "sample data key=value pairs")
	return cmd
}
