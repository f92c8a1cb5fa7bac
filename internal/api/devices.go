package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-eufy/internal/bridges/eufy"
)

// commandTimeout bounds a single API command, including reconnect.
const commandTimeout = 15 * time.Second

// DeviceCommand is the request body for PUT /devices/{id}/state.
type DeviceCommand struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// CommandResponse is returned after a command has been applied.
type CommandResponse struct {
	CommandID string     `json:"command_id"`
	Status    string     `json:"status"`
	State     eufy.State `json:"state"`
}

// handleListDevices returns every managed device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.devices.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device with its cached state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	info, err := s.devices.Device(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, eufy.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleRefreshDevice reloads the device state from the device.
func (s *Server) handleRefreshDevice(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, DeviceCommand{Command: eufy.CommandRefresh})
}

// handleSetDeviceState applies a command synchronously and returns the
// resulting state. The body uses the same command names and parameters as
// MQTT commands.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	var cmd DeviceCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Command == "" {
		writeBadRequest(w, "command field is required")
		return
	}
	s.execute(w, r, cmd)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, cmd DeviceCommand) {
	id := chi.URLParam(r, "id")
	msg := eufy.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		DeviceID:   id,
		Command:    cmd.Command,
		Parameters: cmd.Parameters,
		Source:     "api",
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	state, err := s.devices.Execute(ctx, msg)
	if err != nil {
		s.logger.Info("device command rejected",
			"device_id", id,
			"command", cmd.Command,
			"command_id", msg.ID,
			"error", err,
		)
		writeCommandError(w, err)
		return
	}

	s.logger.Info("device command applied",
		"device_id", id,
		"command", cmd.Command,
		"command_id", msg.ID,
	)
	writeJSON(w, http.StatusOK, CommandResponse{
		CommandID: msg.ID,
		Status:    string(eufy.AckAccepted),
		State:     state,
	})
}
