// Package model provides the model artifact compiled into the dice binary.
//
// `make model MODEL=/path/to/bundle.json` copies a loom bundle to
// artifacts/model.json before building. Without it the binary embeds
// artifacts/placeholder.json, which only exists to keep the build green and
// is rejected by the runtime at load time.
package model

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const (
	artifactPath    = "artifacts/model.json"
	placeholderPath = "artifacts/placeholder.json"
)

//go:embed artifacts
var artifacts embed.FS

// Artifact is a model payload and where it came from.
type Artifact struct {
	Payload     []byte
	Source      string
	Placeholder bool
}

// Embedded returns the compiled-in artifact, falling back to the
// placeholder when no model was provided at build time.
func Embedded() (Artifact, error) {
	return fromFS(artifacts)
}

func fromFS(fsys fs.FS) (Artifact, error) {
	payload, err := fs.ReadFile(fsys, artifactPath)
	if err == nil {
		return Artifact{Payload: payload, Source: "embedded:" + artifactPath}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return Artifact{}, fmt.Errorf("failed to read embedded model: %w", err)
	}

	payload, err = fs.ReadFile(fsys, placeholderPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to read placeholder model: %w", err)
	}
	return Artifact{Payload: payload, Source: "embedded:" + placeholderPath, Placeholder: true}, nil
}

// Load returns the artifact at path, or the embedded one when path is empty.
func Load(path string) (Artifact, error) {
	if path == "" {
		return Embedded()
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to read model file: %w", err)
	}
	return Artifact{Payload: payload, Source: path}, nil
}
