package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
)

// Loader fetches a container configuration. It is called once per page
// load and does not retry; retry policy belongs to the caller.
type Loader interface {
	Load(ctx context.Context, containerID string) (*container.Container, error)
}

// HTTPLoader issues GET {Endpoint}/config/{containerId}.
type HTTPLoader struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPLoader creates an HTTPLoader with the given request timeout.
func NewHTTPLoader(endpoint string, timeout time.Duration) *HTTPLoader {
	return &HTTPLoader{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{Timeout: timeout},
	}
}

func (l *HTTPLoader) Load(ctx context.Context, containerID string) (*container.Container, error) {
	if containerID == "" {
		return nil, &StartupError{Err: errors.New("container id is required")}
	}
	u := l.Endpoint + "/config/" + url.PathEscape(containerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &StartupError{ContainerID: containerID, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &StartupError{ContainerID: containerID, Err: fmt.Errorf("fetch config: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StartupError{ContainerID: containerID, Err: fmt.Errorf("fetch config: status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &StartupError{ContainerID: containerID, Err: fmt.Errorf("read config: %w", err)}
	}
	c, err := container.Decode(body)
	if err != nil {
		return nil, &StartupError{ContainerID: containerID, Err: err}
	}
	return c, nil
}

// FileLoader reads {Dir}/{containerId}.json, .yaml or .yml.
type FileLoader struct {
	Dir string
}

func (l FileLoader) Load(_ context.Context, containerID string) (*container.Container, error) {
	if containerID == "" {
		return nil, &StartupError{Err: errors.New("container id is required")}
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(l.Dir, containerID+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &StartupError{ContainerID: containerID, Err: err}
		}
		c, err := DecodeFile(path, data)
		if err != nil {
			return nil, &StartupError{ContainerID: containerID, Err: err}
		}
		return c, nil
	}
	return nil, &StartupError{ContainerID: containerID, Err: fmt.Errorf("no container document in %s", l.Dir)}
}

// ReadDoc parses a container document, choosing YAML or JSON by extension.
func ReadDoc(path string, data []byte) (*container.Doc, error) {
	var doc container.Doc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		d, err := container.ParseDoc(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		doc = *d
	}
	return &doc, nil
}

// DecodeFile parses and decodes a container document file.
func DecodeFile(path string, data []byte) (*container.Container, error) {
	doc, err := ReadDoc(path, data)
	if err != nil {
		return nil, err
	}
	return container.FromDoc(doc)
}
