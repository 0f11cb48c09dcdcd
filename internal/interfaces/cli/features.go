package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/fluoric/internal/intelligence/common"
)

type featuresOptions struct {
	smiles   string
	property string
}

// featureOutput lists the descriptor values a model would see.
type featureOutput struct {
	SMILES   string             `json:"smiles"`
	Property common.Property    `json:"property"`
	Model    string             `json:"model"`
	Version  string             `json:"version"`
	Names    []string           `json:"-"`
	Features map[string]float64 `json:"features"`
}

func (o *featureOutput) TableHeaders() []string { return []string{"Feature", "Value"} }

func (o *featureOutput) TableRows() [][]string {
	rows := make([][]string, len(o.Names))
	for i, n := range o.Names {
		rows[i] = []string{n, formatValue(o.Features[n])}
	}
	return rows
}

func newFeaturesCmd() *cobra.Command {
	opts := &featuresOptions{}

	cmd := &cobra.Command{
		Use:     "features",
		Short:   "Show the descriptor vector computed for one SMILES",
		Example: "  fluoric features --smiles 'OC(=O)C(F)(F)F' --property pka -o table",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeatures(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.smiles, "smiles", "s", "", "SMILES string (required)")
	cmd.Flags().StringVarP(&opts.property, "property", "p", "logP", "model whose feature schema to use (logP, pKa)")
	_ = cmd.MarkFlagRequired("smiles")
	return cmd
}

func runFeatures(cmd *cobra.Command, opts *featuresOptions) error {
	property, err := common.ParseProperty(opts.property)
	if err != nil {
		return err
	}
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	rt, err := cliCtx.Runtime()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	vec, model, err := rt.Service.Features(ctx, property, opts.smiles)
	if err != nil {
		return err
	}
	return PrintResult(cmd, &featureOutput{
		SMILES:   opts.smiles,
		Property: property,
		Model:    model.Name(),
		Version:  model.Version(),
		Names:    vec.Names,
		Features: vec.Map(),
	})
}
