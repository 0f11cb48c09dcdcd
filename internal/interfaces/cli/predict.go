package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/fluoric/internal/application/prediction"
	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/internal/intelligence/common"
	"github.com/turtacn/fluoric/pkg/errors"
)

type predictOptions struct {
	input  string
	output string
}

// predictionOutput renders a finished batch.
type predictionOutput struct {
	BatchID  string                   `json:"batch_id"`
	Property common.Property          `json:"property"`
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`

	table *prediction.OutputTable
}

func newPredictionOutput(res *prediction.BatchResult) *predictionOutput {
	out := &predictionOutput{
		BatchID:  res.BatchID,
		Property: res.Property,
		Columns:  res.Output.Columns,
		Rows:     make([]map[string]interface{}, len(res.Output.Rows)),
		table:    res.Output,
	}
	for i, r := range res.Output.Rows {
		out.Rows[i] = map[string]interface{}{
			prediction.SMILESColumn: r.SMILES,
			res.Property.String():   r.Value,
		}
	}
	return out
}

func (o *predictionOutput) TableHeaders() []string { return o.table.Columns }

func (o *predictionOutput) TableRows() [][]string {
	rows := make([][]string, len(o.table.Rows))
	for i, r := range o.table.Rows {
		rows[i] = []string{r.SMILES, formatValue(r.Value)}
	}
	return rows
}

func newPredictCmd() *cobra.Command {
	opts := &predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict <logp|pka>",
		Short: "Predict a property for every SMILES in a CSV table",
		Long: "Reads a CSV table with a SMILES column and writes a two-column table\n" +
			"(SMILES, property) with one prediction per input row. The first row\n" +
			"that cannot be predicted aborts the whole batch.",
		Example: "  fluoric predict logp --input molecules.csv\n" +
			"  cat molecules.csv | fluoric predict pka -o table\n" +
			"  fluoric predict logp --input in.csv --out predictions.csv",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"logp", "pka"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "input CSV file (- for stdin)")
	cmd.Flags().StringVar(&opts.output, "out", "", "write the result as CSV to this file instead of stdout")
	return cmd
}

func runPredict(cmd *cobra.Command, name string, opts *predictOptions) error {
	property, err := common.ParseProperty(name)
	if err != nil {
		return err
	}
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	table, err := readInput(cmd, opts.input)
	if err != nil {
		return err
	}

	rt, err := cliCtx.Runtime()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	res := rt.Service.Run(ctx, property, table)
	if !res.OK() {
		return res.Err()
	}
	out := newPredictionOutput(res)

	if opts.output == "" {
		return PrintResult(cmd, out)
	}
	f, err := os.Create(opts.output)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "cannot create output file").WithDetail(opts.output)
	}
	defer f.Close()
	if err := writeCSV(f, out.TableHeaders(), out.TableRows()); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write output")
	}
	cliCtx.Logger.Debug("predictions written",
		logging.String("path", opts.output),
		logging.Int("rows", len(out.Rows)))
	PrintSuccess(cmd, "wrote "+opts.output)
	return nil
}

func readInput(cmd *cobra.Command, path string) (*prediction.InputTable, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot open input file").WithDetail(path)
		}
		defer f.Close()
		r = f
	}
	return ReadTable(r)
}
