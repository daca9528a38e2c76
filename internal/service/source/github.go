package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/opencontainers/go-digest"

	"github.com/shamu4life/helper-scripts/internal/domain/release"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// GitHub discovers the latest published release of a repository.
type GitHub struct {
	apiURL        string
	repository    string
	asset         string
	token         string
	archiveMember string
	client        *http.Client
}

// githubRelease is the subset of the releases API response that matters here.
type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Digest             string `json:"digest"`
}

// NewGitHub creates a source for "owner/name" picking the asset with the exact given name.
func NewGitHub(apiURL, repository, asset, token, archiveMember string, client *http.Client) *GitHub {
	if apiURL == "" {
		apiURL = DefaultGitHubAPI
	}

	return &GitHub{
		apiURL:        apiURL,
		repository:    repository,
		asset:         asset,
		token:         token,
		archiveMember: archiveMember,
		client:        client,
	}
}

// LatestRelease queries /repos/{owner}/{repo}/releases/latest.
func (g *GitHub) LatestRelease(ctx context.Context) (*release.Descriptor, error) {
	endpoint, err := url.Parse(g.apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}

	endpoint.Path = path.Join(endpoint.Path, "repos", g.repository, "releases", "latest")

	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	header.Set("X-GitHub-Api-Version", "2022-11-28")

	if g.token != "" {
		header.Set("Authorization", "Bearer "+g.token)
	}

	data, err := fetch(ctx, g.client, endpoint.String(), header)
	if err != nil {
		return nil, fmt.Errorf("query latest release: %w", err)
	}

	var rel githubRelease
	if err = json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("decode latest release: %w", err)
	}

	for _, a := range rel.Assets {
		if a.Name != g.asset {
			continue
		}

		return checkDescriptor(&release.Descriptor{
			Version:       rel.TagName,
			ArtifactURL:   a.BrowserDownloadURL,
			Digest:        digest.Digest(a.Digest),
			ArchiveMember: g.archiveMember,
		})
	}

	return nil, fmt.Errorf("%s in %s %s: %w", g.asset, g.repository, rel.TagName, errAssetNotFound)
}
