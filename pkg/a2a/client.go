// Package a2a adapts the a2a-go SDK to the remote agent router: card
// resolution at a fixed well-known path and single-shot message/send calls
// reduced to the identifiers and text the router tracks.
package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
)

// WellKnownCardPath is where an agent publishes its card relative to its base URL.
const WellKnownCardPath = "/.well-known/agent.json"

type AgentCard = sdk.AgentCard

// Task states the router distinguishes.
const (
	TaskStateWorking       = sdk.TaskStateWorking
	TaskStateInputRequired = sdk.TaskStateInputRequired
	TaskStateCompleted     = sdk.TaskStateCompleted
	TaskStateCanceled      = sdk.TaskStateCanceled
	TaskStateFailed        = sdk.TaskStateFailed
	TaskStateRejected      = sdk.TaskStateRejected
)

var ErrUnexpectedResult = errors.New("unexpected message/send result")

// CardResolver fetches agent cards from base URLs.
type CardResolver struct {
	resolver *agentcard.Resolver
}

func NewCardResolver(client *http.Client) *CardResolver {
	return &CardResolver{resolver: &agentcard.Resolver{Client: client}}
}

// Resolve returns the card published under baseURL. A card without url
// inherits baseURL.
func (r *CardResolver) Resolve(ctx context.Context, baseURL string) (*AgentCard, error) {
	card, err := r.resolver.Resolve(ctx, strings.TrimRight(baseURL, "/"), agentcard.WithPath(WellKnownCardPath))
	if err != nil {
		return nil, err
	}
	if card.URL == "" {
		card.URL = baseURL
	}
	return card, nil
}

// Document encodes a card for schema validation.
func Document(card *AgentCard) ([]byte, error) {
	raw, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("encode agent card: %w", err)
	}
	return raw, nil
}

// Reply is a message/send result. State is empty when the agent answered
// with a plain message instead of a task.
type Reply struct {
	TaskID    string
	ContextID string
	State     sdk.TaskState
	Text      string
}

// Client sends messages to one remote agent over JSON-RPC.
type Client struct {
	client *a2aclient.Client
}

// NewClient connects to the JSON-RPC endpoint at agentURL; every request goes through httpClient.
func NewClient(ctx context.Context, agentURL string, httpClient *http.Client) (*Client, error) {
	c, err := a2aclient.NewFromEndpoints(ctx,
		[]sdk.AgentInterface{{URL: agentURL, Transport: sdk.TransportProtocolJSONRPC}},
		a2aclient.WithJSONRPCTransport(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create a2a client: %w", err)
	}
	return &Client{client: c}, nil
}

// Send posts text as a user message within taskID and contextID; empty
// identifiers are left for the agent to assign.
func (c *Client) Send(ctx context.Context, text, taskID, contextID string) (*Reply, error) {
	msg := sdk.NewMessage(sdk.MessageRoleUser, sdk.TextPart{Text: text})
	msg.TaskID = sdk.TaskID(taskID)
	msg.ContextID = contextID

	result, err := c.client.SendMessage(ctx, &sdk.MessageSendParams{Message: msg})
	if err != nil {
		return nil, err
	}

	switch r := result.(type) {
	case *sdk.Task:
		return &Reply{
			TaskID:    string(r.ID),
			ContextID: r.ContextID,
			State:     r.Status.State,
			Text:      TaskText(r),
		}, nil
	case *sdk.Message:
		return &Reply{
			TaskID:    string(r.TaskID),
			ContextID: r.ContextID,
			Text:      partsText(nil, r.Parts),
		}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnexpectedResult, result)
}

// TaskText returns the task's artifact text, falling back to its status message.
func TaskText(task *sdk.Task) string {
	var parts []string
	for _, a := range task.Artifacts {
		parts = appendText(parts, a.Parts)
	}
	if len(parts) == 0 && task.Status.Message != nil {
		parts = appendText(parts, task.Status.Message.Parts)
	}
	return strings.Join(parts, "\n")
}

func partsText(out []string, parts []sdk.Part) string {
	return strings.Join(appendText(out, parts), "\n")
}

func appendText(out []string, parts []sdk.Part) []string {
	for _, p := range parts {
		var text string
		switch tp := p.(type) {
		case sdk.TextPart:
			text = tp.Text
		case *sdk.TextPart:
			text = tp.Text
		}
		if strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	return out
}
