package clients

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// CategoriesClient handles communication with the categories-service
type CategoriesClient struct {
	baseURL    string
	httpClient *http.Client
}

// Category represents a category from categories-service
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	IsDefault bool   `json:"isDefault"`
	IsActive  bool   `json:"isActive"`
}

// NewCategoriesClient creates a new categories client
func NewCategoriesClient() *CategoriesClient {
	baseURL := os.Getenv("CATEGORIES_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://categories-service:8080"
	}

	return &CategoriesClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ListCategories fetches every category visible to the merchant
func (c *CategoriesClient) ListCategories(merchantID string) ([]Category, error) {
	url := fmt.Sprintf("%s/api/v1/categories", c.baseURL)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Merchant-ID", merchantID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("categories-service unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("categories-service returned status %d", resp.StatusCode)
	}

	return decodeCategoryList(body)
}

// CategoryNames returns a case-normalized name -> id map, loaded once per
// commit so the engine never issues per-row lookups.
func (c *CategoriesClient) CategoryNames(merchantID string) (map[string]string, error) {
	categories, err := c.ListCategories(merchantID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[strings.ToLower(strings.TrimSpace(cat.Name))] = cat.ID
	}
	return names, nil
}

// DefaultCategoryID returns the merchant's fallback category id, or "" when
// no default is configured.
func (c *CategoriesClient) DefaultCategoryID(merchantID string) (string, error) {
	categories, err := c.ListCategories(merchantID)
	if err != nil {
		return "", err
	}
	for _, cat := range categories {
		if cat.IsDefault {
			return cat.ID, nil
		}
	}
	return "", nil
}

// decodeCategoryList normalizes the envelope shapes the categories-service
// has been observed to answer with: a bare array, {success,data:[...]}, and
// {data:{items:[...]}}. All shape-sniffing of that collaborator lives here,
// at the boundary, so the rest of the pipeline sees one shape.
func decodeCategoryList(body []byte) ([]Category, error) {
	var bare []Category
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var enveloped struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &enveloped); err != nil || len(enveloped.Data) == 0 {
		return nil, fmt.Errorf("unrecognized categories-service response shape")
	}

	var list []Category
	if err := json.Unmarshal(enveloped.Data, &list); err == nil {
		return list, nil
	}

	var paged struct {
		Items []Category `json:"items"`
	}
	if err := json.Unmarshal(enveloped.Data, &paged); err == nil && paged.Items != nil {
		return paged.Items, nil
	}

	return nil, fmt.Errorf("unrecognized categories-service response shape")
}
