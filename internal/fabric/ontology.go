package fabric

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iq-workshop/builder/internal/ontology"
)

// The ontology definition format uses numeric string IDs for entity types,
// properties and relationship types, and UUIDs for data bindings and
// contextualizations. IDs only need to be unique within the definition.

func b64JSON(v interface{}) string {
	data, _ := json.Marshal(v)
	return base64.StdEncoding.EncodeToString(data)
}

// entityTypeName turns a snake_case table name into the PascalCase entity
// type name shown in the Fabric portal.
func entityTypeName(tableName string) string {
	parts := strings.Split(tableName, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "")
}

// BuildOntologyDefinition renders the definition parts for an ontology bound
// to lakehouse tables: platform metadata, one EntityType + DataBinding per
// table, and one RelationshipType + Contextualization per relationship.
func BuildOntologyDefinition(cfg *ontology.Config, workspaceID, lakehouseID, ontologyName string) []DefinitionPart {
	baseTS := time.Now().UnixMilli() % 10_000_000_000
	return buildOntologyDefinition(cfg, workspaceID, lakehouseID, ontologyName, baseTS)
}

func buildOntologyDefinition(cfg *ontology.Config, workspaceID, lakehouseID, ontologyName string, baseTS int64) []DefinitionPart {
	tableNames := cfg.TableNames()

	entityIDs := make(map[string]string, len(tableNames))
	propertyIDs := make(map[string]map[string]string, len(tableNames))
	for i, tableName := range tableNames {
		entityIDs[tableName] = fmt.Sprintf("%d", baseTS+int64(i)*1000)
		cols := make(map[string]string, len(cfg.Tables[tableName].Columns))
		for j, col := range cfg.Tables[tableName].Columns {
			cols[col] = fmt.Sprintf("%d", baseTS+100_000_000+int64(i)*1000+int64(j))
		}
		propertyIDs[tableName] = cols
	}

	parts := []DefinitionPart{
		{
			Path: ".platform",
			Payload: b64JSON(map[string]interface{}{
				"metadata": map[string]string{
					"type":        "Ontology",
					"displayName": ontologyName,
				},
			}),
			PayloadType: "InlineBase64",
		},
		{
			Path:        "definition.json",
			Payload:     b64JSON(map[string]interface{}{}),
			PayloadType: "InlineBase64",
		},
	}

	for _, tableName := range tableNames {
		table := cfg.Tables[tableName]
		entityID := entityIDs[tableName]
		keyPropID := propertyIDs[tableName][table.Key]

		properties := make([]map[string]interface{}, 0, len(table.Columns))
		for _, col := range table.Columns {
			properties = append(properties, map[string]interface{}{
				"id":                    propertyIDs[tableName][col],
				"name":                  col,
				"redefines":             nil,
				"baseTypeNamespaceType": nil,
				"valueType":             table.ColumnType(col),
			})
		}

		entityType := map[string]interface{}{
			"id":                    entityID,
			"namespace":             "usertypes",
			"baseEntityTypeId":      nil,
			"name":                  entityTypeName(tableName),
			"entityIdParts":         []string{keyPropID},
			"displayNamePropertyId": keyPropID,
			"namespaceType":         "Custom",
			"visibility":            "Visible",
			"properties":            properties,
			"timeseriesProperties":  []interface{}{},
		}

		parts = append(parts, DefinitionPart{
			Path:        fmt.Sprintf("EntityTypes/%s/definition.json", entityID),
			Payload:     b64JSON(entityType),
			PayloadType: "InlineBase64",
		})

		propertyBindings := make([]map[string]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			propertyBindings = append(propertyBindings, map[string]string{
				"sourceColumnName": col,
				"targetPropertyId": propertyIDs[tableName][col],
			})
		}

		bindingID := uuid.NewString()
		dataBinding := map[string]interface{}{
			"id": bindingID,
			"dataBindingConfiguration": map[string]interface{}{
				"dataBindingType":  "NonTimeSeries",
				"propertyBindings": propertyBindings,
				"sourceTableProperties": map[string]string{
					"sourceType":      "LakehouseTable",
					"workspaceId":     workspaceID,
					"itemId":          lakehouseID,
					"sourceTableName": tableName,
				},
			},
		}

		parts = append(parts, DefinitionPart{
			Path:        fmt.Sprintf("EntityTypes/%s/DataBindings/%s.json", entityID, bindingID),
			Payload:     b64JSON(dataBinding),
			PayloadType: "InlineBase64",
		})
	}

	for i, rel := range cfg.Relationships {
		relID := fmt.Sprintf("%d", baseTS+900_000+int64(i))

		relationshipType := map[string]interface{}{
			"id":            relID,
			"namespace":     "usertypes",
			"name":          rel.Name,
			"namespaceType": "Custom",
			"source":        map[string]string{"entityTypeId": entityIDs[rel.From]},
			"target":        map[string]string{"entityTypeId": entityIDs[rel.To]},
		}

		parts = append(parts, DefinitionPart{
			Path:        fmt.Sprintf("RelationshipTypes/%s/definition.json", relID),
			Payload:     b64JSON(relationshipType),
			PayloadType: "InlineBase64",
		})

		// The contextualization binds through the table holding the foreign
		// key: its FK column maps to the source entity's key property, its
		// own key column to the target entity's key property.
		fromKeyPropID := propertyIDs[rel.From][cfg.Tables[rel.From].Key]
		toTableKey := cfg.Tables[rel.To].Key
		toKeyPropID := propertyIDs[rel.To][toTableKey]

		ctxID := uuid.NewString()
		contextualization := map[string]interface{}{
			"id": ctxID,
			"dataBindingTable": map[string]string{
				"workspaceId":     workspaceID,
				"itemId":          lakehouseID,
				"sourceTableName": rel.To,
				"sourceType":      "LakehouseTable",
			},
			"sourceKeyRefBindings": []map[string]string{
				{"sourceColumnName": rel.ToKey, "targetPropertyId": fromKeyPropID},
			},
			"targetKeyRefBindings": []map[string]string{
				{"sourceColumnName": toTableKey, "targetPropertyId": toKeyPropID},
			},
		}

		parts = append(parts, DefinitionPart{
			Path:        fmt.Sprintf("RelationshipTypes/%s/Contextualizations/%s.json", relID, ctxID),
			Payload:     b64JSON(contextualization),
			PayloadType: "InlineBase64",
		})
	}

	return parts
}
