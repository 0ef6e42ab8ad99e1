package vespa

import (
	"archive/zip"
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"
)

//go:embed schemas/services.xml schemas/page.sd.tmpl
var schemaFS embed.FS

// Deployer pushes the application package containing the page schema to a
// Vespa config server. Meant for dev and single-cluster deployments; shared
// clusters manage their own application package.
type Deployer struct {
	httpClient *http.Client
}

// NewDeployer creates a new Vespa deployer
func NewDeployer() *Deployer {
	return &Deployer{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// DeployResult describes the outcome of a deployment
type DeployResult struct {
	EmbeddingDim  int    `json:"embedding_dim"`
	SchemaVersion string `json:"schema_version"`
	Message       string `json:"message"`
}

// Deploy generates the page schema for the given embedding dimension and
// deploys the application package
func (d *Deployer) Deploy(ctx context.Context, endpoint string, embeddingDim int) (*DeployResult, error) {
	endpoint, err := ValidateEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if embeddingDim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim)
	}

	schemaContent, err := generateSchema(embeddingDim)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	servicesContent, err := schemaFS.ReadFile("schemas/services.xml")
	if err != nil {
		return nil, fmt.Errorf("failed to read services.xml: %w", err)
	}

	zipData, err := createAppPackage(servicesContent, schemaContent)
	if err != nil {
		return nil, fmt.Errorf("failed to create app package: %w", err)
	}

	deployURL := fmt.Sprintf("%s/application/v2/tenant/default/prepareandactivate", endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deployURL, bytes.NewReader(zipData))
	if err != nil {
		return nil, fmt.Errorf("failed to create deploy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/zip")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deployment request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("deployment failed with status %s: %s", resp.Status, string(body))
	}

	return &DeployResult{
		EmbeddingDim:  embeddingDim,
		SchemaVersion: fmt.Sprintf("v1-dim%d", embeddingDim),
		Message:       fmt.Sprintf("Deployed page schema with %d-dimension embeddings", embeddingDim),
	}, nil
}

// HealthCheck verifies the Vespa config server is healthy
func (d *Deployer) HealthCheck(ctx context.Context, endpoint string) error {
	endpoint = strings.TrimSuffix(endpoint, "/")
	healthURL := fmt.Sprintf("%s/state/v1/health", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unhealthy: %s - %s", resp.Status, string(body))
	}
	return nil
}

// generateSchema renders the page schema template for the embedding dimension
func generateSchema(embeddingDim int) ([]byte, error) {
	tmplContent, err := schemaFS.ReadFile("schemas/page.sd.tmpl")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("schema").Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	data := struct {
		EmbeddingDim int
	}{
		EmbeddingDim: embeddingDim,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// createAppPackage builds a Vespa application package zip
func createAppPackage(services, schema []byte) ([]byte, error) {
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	servicesWriter, err := zipWriter.Create("services.xml")
	if err != nil {
		return nil, err
	}
	if _, err := servicesWriter.Write(services); err != nil {
		return nil, err
	}

	schemaWriter, err := zipWriter.Create("schemas/page.sd")
	if err != nil {
		return nil, err
	}
	if _, err := schemaWriter.Write(schema); err != nil {
		return nil, err
	}

	if err := zipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
