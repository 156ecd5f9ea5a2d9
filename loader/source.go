package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/modules"
)

// Source is where a module image comes from: a file path or a buffer.
// Exactly one of Path and Bytes must be set. Name overrides the module name;
// a buffer without a name section needs it.
type Source struct {
	Path  string
	Name  string
	Bytes []byte
}

// File returns a Source for a path.
func File(path string) Source {
	return Source{Path: path}
}

// Memory returns a Source for a named buffer.
func Memory(name string, bin []byte) Source {
	return Source{Name: name, Bytes: bin}
}

func (s Source) String() string {
	if s.Path != "" {
		return s.Path
	}
	return modules.MemorySource
}

func (s Source) validate() error {
	hasPath, hasBytes := s.Path != "", s.Bytes != nil
	switch {
	case hasPath && hasBytes:
		return errors.New(errors.PhaseLoad, errors.KindInvalidSource).Detail("source has both a path and a buffer").Build()
	case !hasPath && !hasBytes:
		return errors.New(errors.PhaseLoad, errors.KindInvalidSource).Detail("source has neither a path nor a buffer").Build()
	}
	return nil
}

// read returns the image bytes.
func (s Source) read() ([]byte, error) {
	if s.Path == "" {
		return s.Bytes, nil
	}
	bin, err := os.ReadFile(s.Path)
	switch {
	case err == nil:
		return bin, nil
	case os.IsNotExist(err):
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Path(s.Path).
			Detail("module file not found").
			Cause(err).
			Build()
	default:
		return nil, errors.New(errors.PhaseLoad, errors.KindLoadFailure).
			Path(s.Path).
			Detail("read module file").
			Cause(err).
			Build()
	}
}

// moduleName picks the explicit name, then the image's own name, then the
// file name without extension.
func (s Source) moduleName(imageName string) (string, error) {
	if s.Name != "" {
		return s.Name, nil
	}
	if imageName != "" {
		return imageName, nil
	}
	if s.Path != "" {
		base := filepath.Base(s.Path)
		if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
			return name, nil
		}
	}
	return "", errors.New(errors.PhaseLoad, errors.KindInvalidSource).
		Detail("module from %s has no name", s).
		Build()
}

