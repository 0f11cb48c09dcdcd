package regression

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/turtacn/fluoric/pkg/errors"
)

// Source fetches raw artifact bytes by name.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	// Describe identifies the source in logs.
	Describe() string
}

//go:embed artifacts/*.json
var embedded embed.FS

// EmbeddedSource serves the artifacts compiled into the binary.
type EmbeddedSource struct{}

// NewEmbeddedSource returns the default source.
func NewEmbeddedSource() EmbeddedSource { return EmbeddedSource{} }

func (EmbeddedSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := embedded.ReadFile(path.Join("artifacts", path.Base(name)))
	if err != nil {
		return nil, notFound(name, err)
	}
	return data, nil
}

func (EmbeddedSource) Describe() string { return "embedded" }

// EmbeddedArtifacts lists the names of the compiled-in artifacts.
func EmbeddedArtifacts() []string {
	entries, err := fs.ReadDir(embedded, "artifacts")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// DirSource reads artifacts from a local directory. Names may not escape
// the directory.
type DirSource struct {
	dir string
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean("/" + name)
	if strings.Contains(name, "..") || clean == "/" {
		return nil, errors.New(errors.ErrCodeModelArtifactInvalid, "artifact name must stay inside the model directory").
			WithDetail(name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(name, err)
		}
		return nil, errors.Wrap(err, errors.ErrCodeModelNotLoaded, "cannot read model artifact").WithDetail(name)
	}
	return data, nil
}

func (s *DirSource) Describe() string { return "file:" + s.dir }

func notFound(name string, cause error) error {
	return errors.New(errors.ErrCodeModelNotFound, "model artifact not found").
		WithDetail(name).
		WithCause(cause)
}
