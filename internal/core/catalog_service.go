package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// upstreamProduct is the wire shape of one product in the upstream catalog feed.
type upstreamProduct struct {
	SKU         string          `json:"sku"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Active      bool            `json:"active"`
}

// LandingCopy is generated marketing copy for one product page.
type LandingCopy struct {
	Headline      string     `json:"headline"`
	Subheadline   string     `json:"subheadline"`
	SellingPoints []string   `json:"selling_points"`
	FAQ           []FAQEntry `json:"faq"`
}

// LandingCopywriter produces landing copy for a product. Implemented by the
// AI agent.
type LandingCopywriter interface {
	GenerateLandingCopy(ctx context.Context, name, description string) (*LandingCopy, error)
}

// CatalogService owns products, landing pages, and courier export settings.
type CatalogService interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, *LandingConfig, error)
	GetProductBySKU(ctx context.Context, sku string) (*Product, error)

	// SyncProducts pulls the upstream catalog feed and upserts it by SKU.
	// Products missing from the feed are deactivated, never deleted.
	SyncProducts(ctx context.Context, actor string) (int, error)

	SaveLandingConfig(ctx context.Context, productID int64, copy LandingCopy, actor string) (*LandingConfig, error)

	// GenerateLanding asks the copywriter for fresh copy and stores it.
	GenerateLanding(ctx context.Context, productID int64, actor string) (*LandingConfig, error)

	CourierSettings(ctx context.Context) (*CourierExportSettings, error)
	SaveCourierSettings(ctx context.Context, name string, columns []CourierColumn) (*CourierExportSettings, error)
}

type catalogService struct {
	pool        *pgxpool.Pool
	events      *EventRecorder
	client      *http.Client
	upstreamURL string
	copywriter  LandingCopywriter // optional
}

func NewCatalogService(pool *pgxpool.Pool, events *EventRecorder, upstreamURL string, copywriter LandingCopywriter) CatalogService {
	return &catalogService{
		pool:        pool,
		events:      events,
		client:      &http.Client{Timeout: 30 * time.Second},
		upstreamURL: upstreamURL,
		copywriter:  copywriter,
	}
}

const productColumns = `
	id, sku, slug, name, description, price, image_url, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Slug, &p.Name, &p.Description,
		&p.Price, &p.ImageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *catalogService) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	query := "SELECT" + productColumns + " FROM products"
	if activeOnly {
		query += " WHERE is_active = true"
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *catalogService) GetProductBySlug(ctx context.Context, slug string) (*Product, *LandingConfig, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		"SELECT"+productColumns+" FROM products WHERE slug = $1 AND is_active = true", slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("product %q not found", slug)
		}
		return nil, nil, fmt.Errorf("failed to fetch product %q: %w", slug, err)
	}

	landing, err := s.landingConfig(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, landing, nil
}

func (s *catalogService) GetProductBySKU(ctx context.Context, sku string) (*Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		"SELECT"+productColumns+" FROM products WHERE sku = $1", sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %q not found", sku)
		}
		return nil, fmt.Errorf("failed to fetch product %q: %w", sku, err)
	}
	return p, nil
}

// landingConfig returns the stored landing copy, or nil when none exists yet.
func (s *catalogService) landingConfig(ctx context.Context, productID int64) (*LandingConfig, error) {
	var lc LandingConfig
	var copyJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT product_id, copy_json, updated_at
		FROM product_landing_config
		WHERE product_id = $1
	`, productID).Scan(&lc.ProductID, &copyJSON, &lc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch landing config: %w", err)
	}

	var copy LandingCopy
	if err := json.Unmarshal(copyJSON, &copy); err != nil {
		return nil, fmt.Errorf("failed to decode landing config: %w", err)
	}
	lc.Headline = copy.Headline
	lc.Subheadline = copy.Subheadline
	lc.SellingPoints = copy.SellingPoints
	lc.FAQ = copy.FAQ
	return &lc, nil
}

// ── Upstream sync ────────────────────────────────────────────────────────────

func (s *catalogService) SyncProducts(ctx context.Context, actor string) (int, error) {
	feed, err := s.fetchFeed(ctx)
	if err != nil {
		if evErr := s.events.SystemEvent(ctx, actor, ProductsSyncFailedPayload{Reason: err.Error()}); evErr != nil {
			return 0, errors.Join(err, evErr)
		}
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	skus := make([]string, 0, len(feed))
	for _, up := range feed {
		skus = append(skus, up.SKU)
		_, err := tx.Exec(ctx, `
			INSERT INTO products (sku, slug, name, description, price, image_url, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			ON CONFLICT (sku) DO UPDATE SET
				slug = EXCLUDED.slug, name = EXCLUDED.name,
				description = EXCLUDED.description, price = EXCLUDED.price,
				image_url = EXCLUDED.image_url, is_active = EXCLUDED.is_active,
				updated_at = NOW()
		`, up.SKU, up.Slug, up.Name, up.Description, up.Price, up.ImageURL, up.Active)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert product %q: %w", up.SKU, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products SET is_active = false, updated_at = NOW()
		WHERE is_active = true AND NOT (sku = ANY($1))
	`, skus); err != nil {
		return 0, fmt.Errorf("failed to deactivate removed products: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit product sync: %w", err)
	}

	err = s.events.SystemEvent(ctx, actor, ProductsSyncedPayload{
		Upserted: len(feed),
		Source:   s.upstreamURL,
	})
	if err != nil {
		return 0, err
	}
	return len(feed), nil
}

func (s *catalogService) fetchFeed(ctx context.Context) ([]upstreamProduct, error) {
	if s.upstreamURL == "" {
		return nil, errors.New("no upstream catalog URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.upstreamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog feed returned status %d", resp.StatusCode)
	}

	var feed []upstreamProduct
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode catalog feed: %w", err)
	}
	return feed, nil
}

// ── Landing copy ─────────────────────────────────────────────────────────────

func (s *catalogService) SaveLandingConfig(ctx context.Context, productID int64, copy LandingCopy, actor string) (*LandingConfig, error) {
	b, err := json.Marshal(copy)
	if err != nil {
		return nil, fmt.Errorf("failed to encode landing copy: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO product_landing_config (product_id, copy_json, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (product_id) DO UPDATE SET copy_json = EXCLUDED.copy_json, updated_at = NOW()
	`, productID, b)
	if err != nil {
		return nil, fmt.Errorf("failed to save landing config: %w", err)
	}
	return s.landingConfig(ctx, productID)
}

func (s *catalogService) GenerateLanding(ctx context.Context, productID int64, actor string) (*LandingConfig, error) {
	if s.copywriter == nil {
		return nil, errors.New("no landing copywriter configured")
	}

	p, err := scanProduct(s.pool.QueryRow(ctx,
		"SELECT"+productColumns+" FROM products WHERE id = $1", productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}

	copy, err := s.copywriter.GenerateLandingCopy(ctx, p.Name, p.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to generate landing copy: %w", err)
	}

	lc, err := s.SaveLandingConfig(ctx, productID, *copy, actor)
	if err != nil {
		return nil, err
	}

	err = s.events.SystemEvent(ctx, actor, LandingGeneratedPayload{ProductSKU: p.SKU})
	if err != nil {
		return nil, err
	}
	return lc, nil
}

// ── Courier export settings ──────────────────────────────────────────────────

// CourierSettings returns the active column mapping, or a built-in default
// when none has been saved yet.
func (s *catalogService) CourierSettings(ctx context.Context) (*CourierExportSettings, error) {
	var settings CourierExportSettings
	var columnsJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, columns_json FROM courier_export_settings ORDER BY id DESC LIMIT 1
	`).Scan(&settings.ID, &settings.Name, &columnsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultCourierSettings(), nil
		}
		return nil, fmt.Errorf("failed to fetch courier settings: %w", err)
	}

	if err := json.Unmarshal(columnsJSON, &settings.Columns); err != nil {
		return nil, fmt.Errorf("failed to decode courier settings: %w", err)
	}
	return &settings, nil
}

func (s *catalogService) SaveCourierSettings(ctx context.Context, name string, columns []CourierColumn) (*CourierExportSettings, error) {
	b, err := json.Marshal(columns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode courier settings: %w", err)
	}

	var settings CourierExportSettings
	err = s.pool.QueryRow(ctx, `
		INSERT INTO courier_export_settings (name, columns_json, updated_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name
	`, name, b).Scan(&settings.ID, &settings.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to save courier settings: %w", err)
	}
	settings.Columns = columns
	return &settings, nil
}

// DefaultCourierSettings is the column mapping used before an operator saves
// their own.
func DefaultCourierSettings() *CourierExportSettings {
	return &CourierExportSettings{
		Name: "default",
		Columns: []CourierColumn{
			{Header: "Order No", Template: "{order_number}"},
			{Header: "Receiver", Template: "{customer_name}"},
			{Header: "Phone", Template: "{phone}"},
			{Header: "Address", Template: "{address}"},
			{Header: "City", Template: "{city}"},
			{Header: "COD Amount", Template: "{total}"},
		},
	}
}
