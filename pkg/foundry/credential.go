package foundry

import (
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/openai/openai-go/option"
)

// Scope is the token scope for AI Foundry project endpoints
const Scope = "https://ai.azure.com/.default"

// NewCredential returns the default Azure credential chain
// (environment, workload identity, managed identity, Azure CLI, ...)
func NewCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure credential: %w", err)
	}
	return cred, nil
}

// bearerToken stamps every outgoing request with a token for Scope
func bearerToken(cred azcore.TokenCredential) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		token, err := cred.GetToken(req.Context(), policy.TokenRequestOptions{
			Scopes: []string{Scope},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to acquire token: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+token.Token)
		return next(req)
	}
}
