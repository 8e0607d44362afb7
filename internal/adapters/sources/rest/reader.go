package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pet-registry/internal/platform/httpclient"
	"pet-registry/internal/ports/sources"
)

var (
	ErrNotConfigured = errors.New("source client not configured")
	ErrUpstream      = errors.New("source upstream error")
)

// Config del cliente de un subsistema de origen (tienda, adopciones,
// rescates). BaseURL y APIKey normalmente vendrán de env vars.
type Config struct {
	// Source es el tipo que este subsistema reporta (manual, purchased,
	// adopted, rescued). Se usa tal cual en los Record devueltos.
	Source sources.Type

	BaseURL string
	APIKey  string

	// Opcional: header donde va la API key. Default "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

// Reader consulta un subsistema de origen por HTTP. Solo lectura:
// nunca escribe de vuelta al subsistema dueño del registro.
type Reader struct {
	source sources.Type
	client *httpclient.Client
}

func NewReader(cfg Config) (*Reader, error) {
	client, err := httpclient.NewWithBaseURL(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		h := strings.TrimSpace(cfg.APIKeyHeader)
		if h == "" {
			h = "X-Api-Key"
		}
		client.SetDefaultHeader(h, key)
	}
	return &Reader{
		source: cfg.Source,
		client: client,
	}, nil
}

func (r *Reader) isConfigured() bool {
	return r != nil && r.client != nil && r.client.BaseURL() != ""
}

func (r *Reader) ListByOwner(ctx context.Context, userID string) ([]sources.Record, error) {
	if !r.isConfigured() {
		return nil, ErrNotConfigured
	}

	var out struct {
		Pets []recordDTO `json:"pets"`
	}
	path := "/v1/pets?ownerUserId=" + url.QueryEscape(userID)
	if err := r.client.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	records := make([]sources.Record, 0, len(out.Pets))
	for _, dto := range out.Pets {
		records = append(records, dto.toRecord(r.source))
	}
	return records, nil
}

func (r *Reader) GetByPetCode(ctx context.Context, petCode string) (sources.Record, bool, error) {
	if !r.isConfigured() {
		return sources.Record{}, false, ErrNotConfigured
	}

	var dto recordDTO
	path := "/v1/pets/" + url.PathEscape(petCode)
	err := r.client.DoJSON(ctx, http.MethodGet, path, nil, &dto)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return sources.Record{}, false, nil
		}
		return sources.Record{}, false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return dto.toRecord(r.source), true, nil
}

type recordDTO struct {
	ID             string    `json:"id"`
	PetCode        string    `json:"petCode"`
	OwnerUserID    string    `json:"ownerUserId"`
	Name           string    `json:"name"`
	Species        string    `json:"species"`
	Breed          string    `json:"breed"`
	Gender         string    `json:"gender"`
	AgeMonths      int       `json:"ageMonths"`
	Color          string    `json:"color"`
	Description    string    `json:"description"`
	Images         []string  `json:"images"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

func (d recordDTO) toRecord(source sources.Type) sources.Record {
	return sources.Record{
		Source:      source,
		SourceID:    d.ID,
		PetCode:     strings.ToUpper(strings.TrimSpace(d.PetCode)),
		OwnerUserID: d.OwnerUserID,
		Attributes: sources.Attributes{
			Name:        d.Name,
			Species:     d.Species,
			Breed:       d.Breed,
			Gender:      d.Gender,
			AgeMonths:   d.AgeMonths,
			Color:       d.Color,
			Description: d.Description,
			Images:      d.Images,
		},
		LastModifiedAt: d.LastModifiedAt,
	}
}
