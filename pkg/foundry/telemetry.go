package foundry

import (
	"context"
	"fmt"
	"net/url"

	"github.com/openai/openai-go/option"
)

// connectionTypeAppInsights is the project connection type holding the
// Application Insights connection string
const connectionTypeAppInsights = "AppInsights"

type connection struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	IsDefault bool   `json:"isDefault"`
}

type connectionList struct {
	Value []connection `json:"value"`
}

type connectionWithCredentials struct {
	Name        string `json:"name"`
	Credentials struct {
		Type string `json:"type"`
		Key  string `json:"key"`
	} `json:"credentials"`
}

// TelemetryConnectionString returns the Application Insights connection
// string attached to the project. It returns "" and no error when the
// project has no such connection.
func (c *Client) TelemetryConnectionString(ctx context.Context) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}

	var list connectionList
	err := c.api.Get(ctx, "connections", nil, &list,
		option.WithQuery("connectionType", connectionTypeAppInsights),
	)
	if err != nil {
		return "", fmt.Errorf("failed to list connections: %w", err)
	}

	name := pickConnection(list.Value)
	if name == "" {
		return "", nil
	}

	var res connectionWithCredentials
	path := "connections/" + url.PathEscape(name) + "/getConnectionWithCredentials"
	if err := c.api.Post(ctx, path, nil, &res); err != nil {
		return "", fmt.Errorf("failed to get connection %s: %w", name, err)
	}

	return res.Credentials.Key, nil
}

// pickConnection prefers the default AppInsights connection, else the first
func pickConnection(conns []connection) string {
	first := ""
	for _, conn := range conns {
		if conn.Type != "" && conn.Type != connectionTypeAppInsights {
			continue
		}
		if conn.IsDefault {
			return conn.Name
		}
		if first == "" {
			first = conn.Name
		}
	}
	return first
}
