package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/heimdex/heimdex-labels/internal/ontology"
)

// Client is the annotation platform as seen by the agent.
type Client interface {
	ListLabelRows(ctx context.Context) ([]LabelRowSummary, error)
	FetchLabelRow(ctx context.Context, labelHash string) (*LabelRowDocument, error)
	// SaveLabelRow replaces the stored row if it is still at version and
	// returns the new version. A stale version yields an APIError for which
	// IsConflict is true.
	SaveLabelRow(ctx context.Context, labelHash string, payload []byte, version string) (string, error)
	FetchOntology(ctx context.Context, ontologyHash string) (*ontology.Structure, error)
}

// LabelRowSummary is one entry of the label-row listing.
type LabelRowSummary struct {
	LabelHash    string `json:"label_hash"`
	DataHash     string `json:"data_hash"`
	DataTitle    string `json:"data_title"`
	DataType     string `json:"data_type"`
	OntologyHash string `json:"ontology_hash"`
	LabelStatus  string `json:"label_status"`
}

// LabelRowDocument is a fetched label-row payload with the version it was
// read at.
type LabelRowDocument struct {
	Payload []byte
	Version string
}

// StubClient keeps label rows and ontologies in memory. It is used when no
// cloud URL is configured and in tests.
type StubClient struct {
	logger *slog.Logger

	mu         sync.Mutex
	rows       map[string]stubRow
	ontologies map[string]*ontology.Structure
}

type stubRow struct {
	summary LabelRowSummary
	payload []byte
	version int
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{
		logger:     logger,
		rows:       make(map[string]stubRow),
		ontologies: make(map[string]*ontology.Structure),
	}
}

// PutLabelRow stores a row as if another client had saved it.
func (c *StubClient) PutLabelRow(summary LabelRowSummary, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	version := c.rows[summary.LabelHash].version + 1
	c.rows[summary.LabelHash] = stubRow{summary: summary, payload: payload, version: version}
}

// PutOntology registers an ontology structure.
func (c *StubClient) PutOntology(hash string, s *ontology.Structure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ontologies[hash] = s
}

func (c *StubClient) ListLabelRows(ctx context.Context) ([]LabelRowSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LabelRowSummary, 0, len(c.rows))
	for _, r := range c.rows {
		out = append(out, r.summary)
	}
	return out, nil
}

func (c *StubClient) FetchLabelRow(ctx context.Context, labelHash string) (*LabelRowDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rows[labelHash]
	if !ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, Body: "label row not found"}
	}
	c.logger.Debug("cloud stub: label row fetched", "label_hash", labelHash, "version", r.version)
	return &LabelRowDocument{Payload: r.payload, Version: strconv.Itoa(r.version)}, nil
}

func (c *StubClient) SaveLabelRow(ctx context.Context, labelHash string, payload []byte, version string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rows[labelHash]
	if !ok {
		return "", &APIError{StatusCode: http.StatusNotFound, Body: "label row not found"}
	}
	if version != strconv.Itoa(r.version) {
		return "", &APIError{StatusCode: http.StatusPreconditionFailed, Body: fmt.Sprintf("version %s is stale, current is %d", version, r.version)}
	}
	r.payload = payload
	r.version++
	c.rows[labelHash] = r
	c.logger.Info("cloud stub: label row saved", "label_hash", labelHash, "version", r.version)
	return strconv.Itoa(r.version), nil
}

func (c *StubClient) FetchOntology(ctx context.Context, ontologyHash string) (*ontology.Structure, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.ontologies[ontologyHash]
	if !ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, Body: "ontology not found"}
	}
	return s, nil
}
