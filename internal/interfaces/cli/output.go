package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/fluoric/pkg/errors"
)

// tableProvider is implemented by results that render as tables.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult outputs data in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "text"
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}

	switch strings.ToLower(format) {
	case "json":
		return printJSON(cmd.OutOrStdout(), data)
	case "table":
		return printTable(cmd.OutOrStdout(), data)
	case "csv":
		if tp, ok := data.(tableProvider); ok {
			return writeCSV(cmd.OutOrStdout(), tp.TableHeaders(), tp.TableRows())
		}
		return printText(cmd.OutOrStdout(), data)
	default:
		return printText(cmd.OutOrStdout(), data)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printText writes tables as tab-separated lines and anything else with %v.
func printText(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case tableProvider:
		fmt.Fprintln(w, strings.Join(v.TableHeaders(), "\t"))
		for _, row := range v.TableRows() {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
	case string:
		fmt.Fprintln(w, v)
	case fmt.Stringer:
		fmt.Fprintln(w, v.String())
	default:
		fmt.Fprintf(w, "%+v\n", v)
	}
	return nil
}

func printTable(w io.Writer, data interface{}) error {
	tp, ok := data.(tableProvider)
	if !ok {
		return printText(w, data)
	}
	return renderTable(w, tp.TableHeaders(), tp.TableRows())
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintError writes err to stderr, with the code of a typed error.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	red := color.New(color.FgRed, color.Bold)
	var ae *errors.AppError
	if errors.As(err, &ae) {
		red.Fprintf(cmd.ErrOrStderr(), "Error [%s]: ", ae.Code)
		fmt.Fprintln(cmd.ErrOrStderr(), ae.Message)
		return
	}
	red.Fprint(cmd.ErrOrStderr(), "Error: ")
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
}

// PrintSuccess writes a success message to stderr so stdout stays clean.
func PrintSuccess(cmd *cobra.Command, msg string) {
	color.New(color.FgGreen).Fprint(cmd.ErrOrStderr(), "OK: ")
	fmt.Fprintln(cmd.ErrOrStderr(), msg)
}
