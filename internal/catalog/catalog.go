// internal/catalog/catalog.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/common/logger"
	"admission-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// Catalog resolves admission codes to detailed program records.
type Catalog interface {
	LookupPrograms(ctx context.Context, admissionCodes []string) (map[string][]models.ProgramDetail, error)
}

// ESCatalog is the Elasticsearch-backed program catalog used by the L3
// orchestrator to enrich raw predictor scores into detailed program items.
type ESCatalog struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewESCatalog(client *elasticsearch.Client, index string, log logger.Logger) *ESCatalog {
	return &ESCatalog{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "program-catalog"}),
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.ProgramDetail `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// LookupPrograms runs a terms query over the program index and groups hits by
// admission code. Codes with no catalog entry are simply absent from the map.
func (c *ESCatalog) LookupPrograms(ctx context.Context, admissionCodes []string) (map[string][]models.ProgramDetail, error) {
	if len(admissionCodes) == 0 {
		return map[string][]models.ProgramDetail{}, nil
	}

	query := map[string]interface{}{
		"size": len(admissionCodes) * 10,
		"query": map[string]interface{}{
			"terms": map[string]interface{}{
				"admissionCode": admissionCodes,
			},
		},
		"sort": []map[string]interface{}{
			{"score": map[string]string{"order": "desc"}},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.NewCatalogLookupFailedError(err)
	}

	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(c.index),
		c.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, errors.NewCatalogLookupFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewCatalogLookupFailedError(fmt.Errorf("search returned %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewCatalogLookupFailedError(fmt.Errorf("decode search response: %w", err))
	}

	out := make(map[string][]models.ProgramDetail, len(admissionCodes))
	for _, hit := range parsed.Hits.Hits {
		code := hit.Source.AdmissionCode
		out[code] = append(out[code], hit.Source)
	}

	c.logger.Debug("program lookup completed", map[string]interface{}{
		"requestedCodes": len(admissionCodes),
		"matchedCodes":   len(out),
	})

	return out, nil
}
