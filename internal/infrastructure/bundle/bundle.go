// Package bundle assembles the files uploaded to the remote host: the compose
// manifest, environment files, the fetcher build context and the reference
// document.
package bundle

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/homeport/stackpilot/internal/domain/stack"
	"github.com/homeport/stackpilot/internal/infrastructure/generator/compose"
	"github.com/homeport/stackpilot/internal/infrastructure/templates"
)

// RemoteRoot is the fixed deployment directory on the managed host.
const RemoteRoot = "/opt/stackpilot"

// Paths of the bundle files, relative to the deployment directory.
const (
	ComposePath     = compose.FileName
	EnvExamplePath  = ".env.example"
	SecretsPath     = ".env"
	FetcherDir      = "fetcher"
	DockerfilePath  = "fetcher/Dockerfile"
	PackageJSONPath = "fetcher/package.json"
	ServerPath      = "fetcher/server.js"
	ReferencePath   = "DEPLOYMENT.md"
)

const (
	envTemplate        = "env/env.tmpl"
	dockerfileTemplate = "fetcher/Dockerfile.tmpl"
	packageJSONFile    = "fetcher/package.json"
	serverFile         = "fetcher/server.js"
	referenceTemplate  = "docs/DEPLOYMENT.md.tmpl"

	placeholder = "change-me"
)

// File is one file of the bundle.
type File struct {
	Path    string
	Content string
	Mode    os.FileMode
}

// Bundle is the set of generated files, excluding secrets.
type Bundle struct {
	Files     []File
	CreatedAt time.Time
}

// Get returns the file at rel.
func (b *Bundle) Get(rel string) (File, bool) {
	for _, f := range b.Files {
		if f.Path == rel {
			return f, true
		}
	}
	return File{}, false
}

// Builder renders bundle files.
type Builder struct {
	templates *templates.Templates
	compose   *compose.Generator
	root      string
}

// NewBuilder creates a builder for the default deployment directory.
func NewBuilder() *Builder {
	return &Builder{
		templates: templates.New(),
		compose:   compose.NewGenerator("stackpilot"),
		root:      RemoteRoot,
	}
}

// Root returns the deployment directory.
func (b *Builder) Root() string {
	return b.root
}

// RemotePath returns the absolute remote path of rel.
func (b *Builder) RemotePath(rel string) string {
	return path.Join(b.root, rel)
}

// Directories returns the remote directories the bundle needs.
func (b *Builder) Directories() []string {
	return []string{b.root, b.RemotePath(FetcherDir)}
}

// Compose renders the compose manifest.
func (b *Builder) Compose(ports stack.Ports) (File, error) {
	content, err := b.compose.Generate(ports)
	if err != nil {
		return File{}, fmt.Errorf("failed to generate compose manifest: %w", err)
	}
	return File{Path: ComposePath, Content: content, Mode: 0644}, nil
}

type envValues struct {
	Generated            bool
	PostgresPassword     string
	N8NEncryptionKey     string
	N8NBasicAuthPassword string
	NtfyAdminPassword    string
	FetcherAPIKey        string
}

// EnvExample renders the environment template with placeholder values.
func (b *Builder) EnvExample() (File, error) {
	content, err := b.templates.Render(envTemplate, envValues{
		PostgresPassword:     placeholder,
		N8NEncryptionKey:     placeholder,
		N8NBasicAuthPassword: placeholder,
		NtfyAdminPassword:    placeholder,
		FetcherAPIKey:        placeholder,
	})
	if err != nil {
		return File{}, err
	}
	return File{Path: EnvExamplePath, Content: content, Mode: 0644}, nil
}

// Fetcher renders the fetcher build context.
func (b *Builder) Fetcher() ([]File, error) {
	dockerfile, err := b.templates.Render(dockerfileTemplate, struct{ Port int }{
		Port: stack.ServiceFetcher.ContainerPort(),
	})
	if err != nil {
		return nil, err
	}
	packageJSON, err := b.templates.ReadFile(packageJSONFile)
	if err != nil {
		return nil, err
	}
	server, err := b.templates.ReadFile(serverFile)
	if err != nil {
		return nil, err
	}

	return []File{
		{Path: DockerfilePath, Content: dockerfile, Mode: 0644},
		{Path: PackageJSONPath, Content: packageJSON, Mode: 0644},
		{Path: ServerPath, Content: server, Mode: 0644},
	}, nil
}

type referenceRow struct {
	Name      string
	Container string
	Port      int
	URL       string
}

// ReferenceDoc renders the reference document for host with the chosen ports.
func (b *Builder) ReferenceDoc(host string, ports stack.Ports) (File, error) {
	if err := ports.Validate(); err != nil {
		return File{}, fmt.Errorf("invalid ports: %w", err)
	}

	rows := make([]referenceRow, 0, len(ports))
	for _, svc := range stack.Services() {
		rows = append(rows, referenceRow{
			Name:      svc.DisplayName(),
			Container: svc.ContainerName(),
			Port:      ports[svc],
			URL:       svc.URL(host, ports[svc]),
		})
	}

	content, err := b.templates.Render(referenceTemplate, struct {
		RemoteRoot string
		Services   []referenceRow
	}{
		RemoteRoot: b.root,
		Services:   rows,
	})
	if err != nil {
		return File{}, err
	}
	return File{Path: ReferencePath, Content: content, Mode: 0644}, nil
}

// Build renders every non-secret file of the bundle.
func (b *Builder) Build(host string, ports stack.Ports) (*Bundle, error) {
	out := &Bundle{CreatedAt: time.Now().UTC()}

	composeFile, err := b.Compose(ports)
	if err != nil {
		return nil, err
	}
	envExample, err := b.EnvExample()
	if err != nil {
		return nil, err
	}
	fetcher, err := b.Fetcher()
	if err != nil {
		return nil, err
	}
	reference, err := b.ReferenceDoc(host, ports)
	if err != nil {
		return nil, err
	}

	out.Files = append(out.Files, composeFile, envExample)
	out.Files = append(out.Files, fetcher...)
	out.Files = append(out.Files, reference)
	return out, nil
}
