// Package foundry talks to an Azure AI Foundry project. The project exposes
// agents through the Assistants wire protocol, so the openai-go client is
// pointed at the project endpoint and authenticated with an Azure bearer token.
package foundry
