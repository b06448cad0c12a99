package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/pkg/logger"
)

type Item struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type itemList struct {
	Value []Item `json:"value"`
}

type DefinitionPart struct {
	Path        string `json:"path"`
	Payload     string `json:"payload"`
	PayloadType string `json:"payloadType"`
}

// GetWorkspaceName resolves the workspace display name, which the OneLake
// DFS path is keyed by.
func (c *Client) GetWorkspaceName(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/workspaces/"+c.workspaceID, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", apiError("get workspace", resp)
	}

	var workspace struct {
		DisplayName string `json:"displayName"`
	}
	if err := resp.decode(&workspace); err != nil {
		return "", err
	}
	return workspace.DisplayName, nil
}

// FindItem looks up a workspace item by type and display name. A nil result
// with nil error means not found.
func (c *Client) FindItem(ctx context.Context, itemType, displayName string) (*Item, error) {
	resp, err := c.do(ctx, http.MethodGet, c.workspaceURL("/items?type=%s", itemType), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("list items", resp)
	}

	var list itemList
	if err := resp.decode(&list); err != nil {
		return nil, err
	}

	for _, item := range list.Value {
		if item.DisplayName == displayName {
			found := item
			return &found, nil
		}
	}
	return nil, nil
}

// FindOntology uses the dedicated ontologies endpoint; ontologies do not
// show up in the generic items listing.
func (c *Client) FindOntology(ctx context.Context, displayName string) (*Item, error) {
	resp, err := c.do(ctx, http.MethodGet, c.workspaceURL("/ontologies"), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("list ontologies", resp)
	}

	var list itemList
	if err := resp.decode(&list); err != nil {
		return nil, err
	}

	for _, ont := range list.Value {
		if ont.DisplayName == displayName {
			found := ont
			return &found, nil
		}
	}
	return nil, nil
}

// CreateItem creates a workspace item, following the LRO when the API
// answers 202.
func (c *Client) CreateItem(ctx context.Context, payload interface{}) (*Item, error) {
	resp, err := c.do(ctx, http.MethodPost, c.workspaceURL("/items"), payload)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		var item Item
		if err := resp.decode(&item); err != nil {
			return nil, err
		}
		return &item, nil
	case http.StatusAccepted:
		final, err := c.waitForLRO(ctx, resp.Headers.Get("Location"), "item creation")
		if err != nil {
			return nil, err
		}
		var item Item
		if err := final.decode(&item); err != nil {
			return nil, err
		}
		return &item, nil
	default:
		return nil, apiError("create item", resp)
	}
}

// CreateOntology posts the full definition to the ontologies endpoint.
func (c *Client) CreateOntology(ctx context.Context, displayName, description string, parts []DefinitionPart) (*Item, error) {
	payload := map[string]interface{}{
		"displayName": displayName,
		"description": description,
		"definition":  map[string]interface{}{"parts": parts},
	}

	resp, err := c.do(ctx, http.MethodPost, c.workspaceURL("/ontologies"), payload)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		var item Item
		if err := resp.decode(&item); err != nil {
			return nil, err
		}
		return &item, nil
	case http.StatusAccepted:
		final, err := c.waitForLRO(ctx, resp.Headers.Get("Location"), "ontology creation")
		if err != nil {
			return nil, err
		}
		var item Item
		if err := final.decode(&item); err == nil && item.ID != "" {
			return &item, nil
		}
		// Some LROs omit the resource; fall back to listing by name.
		created, err := c.FindOntology(ctx, displayName)
		if err != nil {
			return nil, err
		}
		if created == nil {
			return nil, fmt.Errorf("ontology %q was created but cannot be found", displayName)
		}
		return created, nil
	default:
		return nil, apiError("create ontology", resp)
	}
}

type fabricAPIError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// CreateDataAgent creates a DataAgent item. Display names of recently
// deleted items stay reserved for a while, so it retries with a numeric
// suffix until one is accepted.
func (c *Client) CreateDataAgent(ctx context.Context, baseName, description string) (*Item, error) {
	const maxSuffix = 10

	for suffix := 0; suffix <= maxSuffix; suffix++ {
		name := baseName
		if suffix > 0 {
			name = fmt.Sprintf("%s_%d", baseName, suffix)
		}

		payload := map[string]string{
			"displayName": name,
			"type":        "DataAgent",
			"description": description,
		}

		resp, err := c.do(ctx, http.MethodPost, c.workspaceURL("/items"), payload)
		if err != nil {
			return nil, err
		}

		switch resp.StatusCode {
		case http.StatusCreated:
			var item Item
			if err := resp.decode(&item); err != nil {
				return nil, err
			}
			return &item, nil
		case http.StatusAccepted:
			final, err := c.waitForLRO(ctx, resp.Headers.Get("Location"), "data agent creation")
			if err != nil {
				return nil, err
			}
			var item Item
			if err := final.decode(&item); err != nil {
				return nil, err
			}
			if item.DisplayName == "" {
				item.DisplayName = name
			}
			return &item, nil
		case http.StatusBadRequest:
			var apiErr fabricAPIError
			if json.Unmarshal(resp.Body, &apiErr) == nil && apiErr.ErrorCode == "ItemDisplayNameNotAvailableYet" {
				logger.Warn("Data agent name not available yet, retrying with suffix",
					zap.String("name", name),
				)
				continue
			}
			return nil, apiError("create data agent", resp)
		default:
			return nil, apiError("create data agent", resp)
		}
	}

	return nil, fmt.Errorf("failed to create data agent after %d name retries", maxSuffix)
}

// UpdateItemDefinition posts new definition parts for an existing item.
func (c *Client) UpdateItemDefinition(ctx context.Context, itemID string, parts []DefinitionPart) error {
	payload := map[string]interface{}{
		"definition": map[string]interface{}{"parts": parts},
	}

	resp, err := c.do(ctx, http.MethodPost, c.workspaceURL("/items/%s/updateDefinition", itemID), payload)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusAccepted:
		_, err := c.waitForLRO(ctx, resp.Headers.Get("Location"), "definition update")
		return err
	default:
		return apiError("update definition", resp)
	}
}

// LoadTable triggers the load-to-delta-table operation for one uploaded CSV.
func (c *Client) LoadTable(ctx context.Context, lakehouseID, tableName, relativePath string) error {
	payload := map[string]interface{}{
		"relativePath": relativePath,
		"pathType":     "File",
		"mode":         "Overwrite",
		"formatOptions": map[string]interface{}{
			"format":    "Csv",
			"header":    true,
			"delimiter": ",",
		},
	}

	url := c.workspaceURL("/lakehouses/%s/tables/%s/load", lakehouseID, tableName)
	resp, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusAccepted:
		_, err := c.waitForLRO(ctx, resp.Headers.Get("Location"), fmt.Sprintf("table %q load", tableName))
		return err
	default:
		return apiError(fmt.Sprintf("load table %q", tableName), resp)
	}
}
