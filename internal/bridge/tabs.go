package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quickask/internal/message"
)

// Methods understood by the extension host.
const (
	MethodActiveTab = "tabs.active"
	MethodSend      = "tabs.send"
	MethodInject    = "tabs.inject"
)

type sendParams struct {
	TabID   int `json:"tab_id"`
	Message any `json:"message"`
}

type injectParams struct {
	TabID int `json:"tab_id"`
}

// ActiveTab returns the focused tab of the current window, or nil when the
// host reports none.
func (h *Hub) ActiveTab(ctx context.Context) (*message.Tab, error) {
	raw, err := h.Call(ctx, MethodActiveTab, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var tab message.Tab
	if err := json.Unmarshal(raw, &tab); err != nil {
		return nil, fmt.Errorf("bridge: decode active tab: %w", err)
	}
	return &tab, nil
}

// SendMessage delivers msg to the page agent in tabID and returns its reply.
// A tab without an agent surfaces as a *RemoteError.
func (h *Hub) SendMessage(ctx context.Context, tabID int, msg any) (json.RawMessage, error) {
	return h.Call(ctx, MethodSend, sendParams{TabID: tabID, Message: msg})
}

// InjectAgent loads the page agent program into tabID.
func (h *Hub) InjectAgent(ctx context.Context, tabID int) error {
	_, err := h.Call(ctx, MethodInject, injectParams{TabID: tabID})
	return err
}

// Probe sends the liveness probe to tabID. A host-reported delivery failure
// means no agent is listening and yields (false, nil); bridge failures are
// returned as errors so they are never mistaken for an absent agent.
func (h *Hub) Probe(ctx context.Context, tabID int) (bool, error) {
	_, err := h.SendMessage(ctx, tabID, message.Probe())
	if err == nil {
		return true, nil
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return false, nil
	}
	return false, err
}
