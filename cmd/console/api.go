package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/hollowvale/companion-engine/internal/handlers"
	"github.com/hollowvale/companion-engine/pkg/chat"
	"github.com/hollowvale/companion-engine/pkg/room"
	"github.com/hollowvale/companion-engine/pkg/state"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	// A degraded API (LLM down) is still usable from the console.
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusServiceUnavailable
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return io.ReadAll(resp.Body)
}

func apiError(body []byte, status int) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("%s", errorResp.Error)
}

func listRooms(client *http.Client, baseURL string) ([]string, error) {
	resp, err := client.Get(baseURL + "/v1/rooms")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(body, resp.StatusCode)
	}

	var ids []string
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse room list: %w", err)
	}
	return ids, nil
}

func getRoom(client *http.Client, baseURL string, roomID string) (*room.Room, error) {
	resp, err := client.Get(baseURL + "/v1/rooms/" + roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(body, resp.StatusCode)
	}

	var rm room.Room
	if err := json.Unmarshal(body, &rm); err != nil {
		return nil, fmt.Errorf("failed to parse room response: %w", err)
	}
	return &rm, nil
}

func createSession(client *http.Client, baseURL string, roomID string) (*state.SessionState, error) {
	jsonData, err := json.Marshal(handlers.CreateSessionRequest{RoomID: roomID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(baseURL+"/v1/session", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(body, resp.StatusCode)
	}

	var st state.SessionState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &st, nil
}

func getSession(client *http.Client, baseURL string, sessionID uuid.UUID) (*state.SessionState, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/session/%s", baseURL, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(body, resp.StatusCode)
	}

	var st state.SessionState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &st, nil
}

func postAction(client *http.Client, baseURL string, sessionID uuid.UUID, action string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		fmt.Sprintf("%s/v1/session/%s/%s", baseURL, sessionID, action),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(body, resp.StatusCode)
	}
	return body, nil
}

func selectNPC(client *http.Client, baseURL string, sessionID uuid.UUID, npcID string) (*handlers.SelectResponse, error) {
	body, err := postAction(client, baseURL, sessionID, "select", handlers.SelectRequest{NPCID: npcID})
	if err != nil {
		return nil, err
	}
	var resp handlers.SelectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse select response: %w", err)
	}
	return &resp, nil
}

func bondNPC(client *http.Client, baseURL string, sessionID uuid.UUID) (*chat.ChatResponse, error) {
	body, err := postAction(client, baseURL, sessionID, "bond", nil)
	if err != nil {
		return nil, err
	}
	var resp chat.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse bond response: %w", err)
	}
	return &resp, nil
}

func dismissAlly(client *http.Client, baseURL string, sessionID uuid.UUID) (*chat.ChatResponse, error) {
	body, err := postAction(client, baseURL, sessionID, "dismiss", nil)
	if err != nil {
		return nil, err
	}
	var resp chat.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse dismiss response: %w", err)
	}
	return &resp, nil
}

func clearTarget(client *http.Client, baseURL string, sessionID uuid.UUID) error {
	_, err := postAction(client, baseURL, sessionID, "clear", nil)
	return err
}

func sendMessage(client *http.Client, baseURL string, sessionID uuid.UUID, message string, valence *float64) (*chat.ChatResponse, error) {
	body, err := postAction(client, baseURL, sessionID, "message", chat.ChatRequest{
		SessionID: sessionID,
		Message:   message,
		Valence:   valence,
	})
	if err != nil {
		return nil, err
	}
	var resp chat.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}
	return &resp, nil
}
