package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/kwimport/internal/core"
)

func newDetectCmd(root *rootOptions) *cobra.Command {
	var (
		tool    string
		mapping map[string]string
	)

	cmd := &cobra.Command{
		Use:   "detect FILE",
		Short: "Show which tool produced an export and how its columns map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args[0])
			if err != nil {
				return err
			}
			svc := newService(nil)
			preview, err := svc.DetectFormat(cmd.Context(), core.DetectRequest{
				FileName:      in.name,
				MimeType:      in.mime,
				Data:          in.data,
				Tool:          core.ToolSource(tool),
				ColumnMapping: mapping,
			})
			if err != nil {
				return withCode(exitFailure, err)
			}
			newLogger(root, cmd.ErrOrStderr()).Info("format detected",
				"tool", preview.Mapping.DetectedTool,
				"confidence", preview.Mapping.Confidence,
			)
			return printJSON(cmd.OutOrStdout(), preview)
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "Treat the file as this tool's export (semrush, ahrefs, google_keyword_planner)")
	cmd.Flags().StringToStringVar(&mapping, "map", nil, "Manual column mapping, e.g. --map Term=keyword,Vol=searchVolume")
	return cmd
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List supported export formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), newService(nil).Tools())
		},
	}
}
