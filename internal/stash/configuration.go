package stash

import (
	"context"
	"encoding/json"
	"fmt"

	graphql "github.com/hasura/go-graphql-client"
)

const pluginConfigurationQuery = `query PluginConfiguration($ids: [ID!]) {
	configuration {
		plugins(include: $ids)
	}
}`

// GetPluginConfiguration fetches the saved settings of one plugin.
// A plugin that was never configured yields an empty map.
func GetPluginConfiguration(ctx context.Context, client *graphql.Client, pluginID string) (map[string]interface{}, error) {
	variables := map[string]interface{}{
		"ids": []string{pluginID},
	}

	data, err := client.ExecRaw(ctx, pluginConfigurationQuery, variables)
	if err != nil {
		return nil, fmt.Errorf("failed to query plugin configuration: %w", err)
	}

	var response struct {
		Configuration struct {
			Plugins map[string]map[string]interface{} `json:"plugins"`
		} `json:"configuration"`
	}

	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse plugin configuration: %w", err)
	}

	settings := response.Configuration.Plugins[pluginID]
	if settings == nil {
		settings = map[string]interface{}{}
	}
	return settings, nil
}
