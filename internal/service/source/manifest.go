package source

import (
	"context"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// Manifest reads a YAML release manifest, the format written by the publish command:
//
//	version: 1.2.0
//	url: https://downloads.example.com/tool-1.2.0
//	digest: sha256:...
type Manifest struct {
	url    string
	client *http.Client
}

// NewManifest creates a source reading the manifest at url.
func NewManifest(url string, client *http.Client) *Manifest {
	return &Manifest{url: url, client: client}
}

// LatestRelease downloads and parses the manifest.
func (m *Manifest) LatestRelease(ctx context.Context) (*release.Descriptor, error) {
	data, err := fetch(ctx, m.client, m.url, nil)
	if err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}

	var desc release.Descriptor
	if err = yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return checkDescriptor(&desc)
}
