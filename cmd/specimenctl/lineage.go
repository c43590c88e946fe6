package main

import (
	"github.com/spf13/cobra"
)

func (a *app) lineageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lineage <specimen-id>",
		Short: "Print the root-first lineage path of a specimen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.svc.LineagePath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(path)
		},
	}
}

func (a *app) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <project-id>",
		Short: "Write a JSON report of a project's specimens to the blob store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.svc.ExportProjectReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(info)
		},
	}
}
