package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/fluoric/internal/app"
	"github.com/turtacn/fluoric/internal/infrastructure/storage/minio"
	"github.com/turtacn/fluoric/internal/intelligence/regression"
	"github.com/turtacn/fluoric/pkg/errors"
)

// modelList renders loaded model metadata.
type modelList struct {
	Models []regression.Info `json:"models"`
}

func (l *modelList) TableHeaders() []string {
	return []string{"Property", "Name", "Version", "Kind", "Features", "Checksum"}
}

func (l *modelList) TableRows() [][]string {
	rows := make([][]string, len(l.Models))
	for i, m := range l.Models {
		rows[i] = []string{
			m.Property.String(),
			m.Name,
			m.Version,
			string(m.Kind),
			strconv.Itoa(len(m.Features)),
			shortChecksum(m.Checksum),
		}
	}
	return rows
}

// remoteList renders artifacts stored in the object store.
type remoteList struct {
	Location  string             `json:"location"`
	Artifacts []minio.ObjectInfo `json:"artifacts"`
}

func (l *remoteList) TableHeaders() []string {
	return []string{"Name", "Size", "ETag", "Last Modified"}
}

func (l *remoteList) TableRows() [][]string {
	rows := make([][]string, len(l.Artifacts))
	for i, a := range l.Artifacts {
		rows[i] = []string{a.Name, strconv.FormatInt(a.Size, 10), a.ETag, a.LastModified.Format(time.RFC3339)}
	}
	return rows
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and publish model artifacts",
	}
	cmd.AddCommand(newModelsListCmd(), newModelsPushCmd(), newModelsRemoteCmd())
	return cmd
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Load the configured models and list them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := rt.Models.LoadAll(ctx); err != nil {
				return err
			}
			out := &modelList{}
			for _, m := range rt.Models.Loaded() {
				out.Models = append(out.Models, m.Info())
			}
			return PrintResult(cmd, out)
		},
	}
}

func newModelsPushCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "push <artifact.json>",
		Short: "Validate an artifact and upload it to the model bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeBadRequest, "cannot read artifact").WithDetail(args[0])
			}
			artifact, err := regression.DecodeArtifact(data)
			if err != nil {
				return err
			}
			// Compiling validates the artifact and rejects unknown features.
			if _, err := regression.NewModel(artifact, regression.Checksum(data), app.FeatureOptions(cliCtx.Config)); err != nil {
				return err
			}

			repo, err := openRepository(cliCtx)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			if name == "" {
				name = filepath.Base(args[0])
			}
			info, err := repo.Upload(ctx, name, data)
			if err != nil {
				return err
			}
			PrintSuccess(cmd, "uploaded "+info.Name+" (sha256 "+regression.Checksum(data)+")")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "object name (default: the file's base name)")
	return cmd
}

func newModelsRemoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remote",
		Short: "List artifacts in the model bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			repo, err := openRepository(cliCtx)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			artifacts, err := repo.List(ctx)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &remoteList{Location: repo.Describe(), Artifacts: artifacts})
		},
	}
}

func openRepository(cliCtx *CLIContext) (*minio.ModelRepository, error) {
	if strings.TrimSpace(cliCtx.Config.MinIO.Endpoint) == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "minio.endpoint is not configured")
	}
	return app.NewRepository(cliCtx.Config, cliCtx.Logger)
}
