package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/lingobot/internal/config"
	"github.com/nextlevelbuilder/lingobot/internal/store"
)

func docsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Inspect uploaded documents",
	}
	cmd.AddCommand(docsListCmd())
	return cmd
}

func docsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's uploaded documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocsList(args[0])
		},
	}
}

func runDocsList(userID string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	documents, err := st.ListDocuments(context.Background(), userID)
	if err != nil {
		return err
	}
	if len(documents) == 0 {
		fmt.Println("No documents for user", userID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSTATUS\tUPLOADED\tID")
	for _, d := range documents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			d.FileName, d.Status, d.UploadedAt.Format("2006-01-02 15:04"), d.ID)
	}
	return w.Flush()
}
