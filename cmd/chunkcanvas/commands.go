package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chunkcanvas"
)

func newCreateCmd(flags *globalFlags) *cobra.Command {
	var req chunkcanvas.CreateRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			info, err := a.store.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), info)
		},
	}

	cmd.Flags().StringVar(&req.Path, "db-path", "", "Index file path")
	cmd.Flags().StringVar(&req.BaseDir, "base-dir", "", "Directory to create the index in (with --name)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Index name (with --base-dir)")
	cmd.Flags().IntVar(&req.Dimension, "dimension", 0, "Vector dimension")
	cmd.Flags().StringVar(&req.Metric, "metric", "cosine", "Similarity metric (cosine, l2, ip)")
	cmd.Flags().BoolVar(&req.Overwrite, "overwrite", false, "Replace an existing index")
	_ = cmd.MarkFlagRequired("dimension")
	return cmd
}

func newInfoCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info <db-path>",
		Short: "Show the record count, dimension and metric of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			info, err := a.store.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), info)
		},
	}
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "list <base-dir>",
		Short: "List the indexes below a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			listing, err := a.store.List(cmd.Context(), args[0], recursive)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPATH")
			for _, e := range listing.Indexes {
				fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&recursive, "recursive", true, "Search subdirectories")
	return cmd
}

func newContentCmd(flags *globalFlags) *cobra.Command {
	var q chunkcanvas.ContentQuery

	cmd := &cobra.Command{
		Use:   "content <db-path>",
		Short: "Print a page of records as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			page, err := a.store.Content(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, it := range page.Items {
				if err := enc.Encode(struct {
					ID       int64     `json:"id"`
					Text     string    `json:"text"`
					Metadata any       `json:"metadata"`
					Preview  []float32 `json:"embedding_preview"`
				}{it.ID, it.Text, it.Metadata, it.Preview}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "Records to skip")
	cmd.Flags().IntVar(&q.Limit, "limit", chunkcanvas.DefaultPageSize, "Records per page")
	cmd.Flags().IntVar(&q.PreviewDim, "preview-dim", chunkcanvas.DefaultPreviewDim, "Vector components to preview")
	return cmd
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <db-path> <id>...",
		Short: "Delete records by ID",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", raw)
				}
				ids = append(ids, id)
			}

			a, err := loadApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			res, err := a.store.Delete(cmd.Context(), args[0], ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d, total %d\n", res.Deleted, res.Requested, res.Total)
			return nil
		},
	}
}

func printInfo(w io.Writer, info *chunkcanvas.Info) error {
	_, err := fmt.Fprintf(w, "path: %s\ntotal: %d\ndimension: %d\nmetric: %s\n", info.Path, info.Total, info.Dimension, info.Metric)
	return err
}
