package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/chuo/core/importer"
)

func (cli *commandLine) importCmd() *cobra.Command {
	var kind, path string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk import records from a csv or xlsx file",
		Long: `Bulk import records from a csv or xlsx file.
Columns are matched against the field names of the kind of records.

Kinds: ` + strings.Join(importer.Kinds, ", ") + `

Example:
  admin import -k books -f catalogue.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind == "" || path == "" {
				_ = cmd.Help()
				return errHelp
			}
			report, err := cli.importFile(kind, path)
			if err != nil {
				return err
			}
			cli.printReport(report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "kind of records: "+strings.Join(importer.Kinds, "|"))
	cmd.Flags().StringVarP(&path, "file", "f", "", "path of the csv or xlsx file")
	return cmd
}

func (cli *commandLine) importFile(kind, path string) (importer.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return importer.Report{}, errors.Wrap(err, "opening file")
	}
	defer func() { _ = f.Close() }()

	req := importer.Request{Kind: strings.ToLower(strings.TrimSpace(kind))}
	return cli.importSvc.Import(req, filepath.Base(path), f)
}

func (cli *commandLine) printReport(report importer.Report) {
	_, _ = fmt.Fprintf(cli.out, "%s: %d rows, %d inserted, %d skipped, %d failed\n",
		report.Kind, report.Total, report.Inserted, report.Skipped, report.Failed)
	for _, rowErr := range report.Errors {
		_, _ = fmt.Fprintf(cli.out, "  row %d: %s\n", rowErr.Row, rowErr.Error)
	}
}
