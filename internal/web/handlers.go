package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/codeddarkness/controller-new/internal/hardware"
	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/storage"
	"github.com/codeddarkness/controller-new/internal/telemetry"
)

const defaultLogLimit = 100

type statusResponse struct {
	Servos   servo.State       `json:"servos"`
	MPU      telemetry.Reading `json:"mpu"`
	Hardware hardwareStatus    `json:"hardware"`
}

type hardwareStatus struct {
	hardware.Status
	ControllerConnected bool   `json:"controller_connected"`
	ControllerType      string `json:"controller_type"`
	Uptime              string `json:"uptime"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	connected, controllerType := s.controller()

	writeJSON(w, http.StatusOK, statusResponse{
		Servos: s.rig.Snapshot(),
		MPU:    s.telemetry.Latest(),
		Hardware: hardwareStatus{
			Status:              s.hw,
			ControllerConnected: connected,
			ControllerType:      controllerType,
			Uptime:              humanize.Time(s.started),
		},
	})
}

// decodeAngle reads the {"angle": n} request body.
func decodeAngle(r *http.Request) (int, error) {
	var body struct {
		Angle *int `json:"angle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("invalid JSON body")
	}
	if body.Angle == nil {
		return 0, fmt.Errorf("missing angle parameter")
	}
	return *body.Angle, nil
}

func channelFromPath(r *http.Request) (int, error) {
	channel, err := strconv.Atoi(r.PathValue("channel"))
	if err != nil {
		return 0, fmt.Errorf("invalid channel %q", r.PathValue("channel"))
	}
	if channel < 0 || channel >= servo.NumChannels {
		return 0, fmt.Errorf("invalid channel %d", channel)
	}
	return channel, nil
}

func (s *Server) handleSetServo(w http.ResponseWriter, r *http.Request) {
	channel, err := channelFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}

	angle, err := decodeAngle(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}

	stored, err := s.rig.Set(channel, angle)
	switch {
	case errors.Is(err, servo.ErrChannelHeld):
		writeError(w, http.StatusConflict, "channel %d is held", channel)
		return
	case errors.Is(err, servo.ErrLocked):
		writeError(w, http.StatusConflict, "servos are locked")
		return
	case err != nil:
		s.logger.Error(fmt.Sprintf("setting servo %d: %s", channel, err))
		writeError(w, http.StatusInternalServerError, "%s", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"channel": channel,
		"angle":   stored,
	})
}

func (s *Server) handleSetAll(w http.ResponseWriter, r *http.Request) {
	angle, err := decodeAngle(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}

	if err = s.rig.SetAll(angle); err != nil {
		s.logger.Error(fmt.Sprintf("moving all servos: %s", err))
		writeError(w, http.StatusInternalServerError, "%s", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"angle":   servo.ClampAngle(angle),
	})
}

func (s *Server) handleHold(w http.ResponseWriter, r *http.Request) {
	channel, err := channelFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}

	// An explicit {"hold": bool} body sets the flag; no body toggles it.
	var body struct {
		Hold *bool `json:"hold"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	var hold bool
	if body.Hold != nil {
		hold = *body.Hold
		err = s.rig.SetHold(channel, hold)
	} else {
		hold, err = s.rig.ToggleHold(channel)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"channel": channel,
		"hold":    hold,
	})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lock *bool `json:"lock"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	var locked bool
	if body.Lock != nil {
		locked = *body.Lock
		s.rig.SetLock(locked)
	} else {
		locked = s.rig.ToggleLock()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"lock_state": locked,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.rig.Stop(); err != nil {
		s.logger.Error(fmt.Sprintf("stopping servos: %s", err))
		writeError(w, http.StatusInternalServerError, "%s", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit %q", raw)
			return
		}
		limit = parsed
	}

	if s.snapshots == nil {
		writeJSON(w, http.StatusOK, []storage.Snapshot{})
		return
	}

	snaps, err := s.snapshots.RecentSnapshots(limit)
	if err != nil {
		s.logger.Error(fmt.Sprintf("reading logs: %s", err))
		writeError(w, http.StatusInternalServerError, "%s", err)
		return
	}
	if snaps == nil {
		snaps = []storage.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}
