package batch

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	sftypes "sheet2frames/type"

	"github.com/disintegration/imaging"
)

// artifact is a fully encoded output file waiting to be committed.
type artifact struct {
	name string
	data []byte
}

func encodePNG(name string, img image.Image) (artifact, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return artifact{}, fmt.Errorf("%w: encoding %s: %v", sftypes.ErrWriteFailed, name, err)
	}
	return artifact{name: name, data: buf.Bytes()}, nil
}

// commit writes every artifact into dir as a unit: all files are staged as
// temp files first, then renamed into place. On any failure the staged and
// already renamed files are removed.
func commit(dir string, files []artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", sftypes.ErrWriteFailed, dir, err)
	}

	temps := make([]string, 0, len(files))
	cleanup := func() {
		for _, t := range temps {
			os.Remove(t)
		}
	}
	for _, a := range files {
		f, err := os.CreateTemp(dir, "."+a.name+".*.tmp")
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: staging %s: %v", sftypes.ErrWriteFailed, a.name, err)
		}
		temps = append(temps, f.Name())
		_, err = f.Write(a.data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: staging %s: %v", sftypes.ErrWriteFailed, a.name, err)
		}
	}

	paths := make([]string, 0, len(files))
	for i, a := range files {
		dst := filepath.Join(dir, a.name)
		if err := os.Rename(temps[i], dst); err != nil {
			for _, p := range paths {
				os.Remove(p)
			}
			temps = temps[i:]
			cleanup()
			return nil, fmt.Errorf("%w: writing %s: %v", sftypes.ErrWriteFailed, dst, err)
		}
		paths = append(paths, dst)
	}
	return paths, nil
}
