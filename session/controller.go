package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Controller endpoint paths, relative to the configured base URL.
const (
	startPath = "/start"
	stopPath  = "/stop"
)

type startPayload struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}

type stopPayload struct {
	ContainerID string `json:"container_id"`
}

type startReply struct {
	ContainerID string `json:"container_id"`
	EditorURL   string `json:"editor_url"`
}

func endpoint(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

func encodeStart(projectID, userID string) ([]byte, error) {
	return json.Marshal(startPayload{ProjectID: projectID, UserID: userID})
}

func encodeStop(containerID string) ([]byte, error) {
	return json.Marshal(stopPayload{ContainerID: containerID})
}

func decodeStart(body []byte) (startReply, error) {
	var reply startReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return startReply{}, fmt.Errorf("JSON parse error: %w", err)
	}

	var missing []string
	if reply.ContainerID == "" {
		missing = append(missing, "container_id")
	}
	if reply.EditorURL == "" {
		missing = append(missing, "editor_url")
	}
	if len(missing) > 0 {
		return startReply{}, errors.New("missing field(s): " + strings.Join(missing, ", "))
	}
	return reply, nil
}
