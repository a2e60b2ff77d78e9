package hostapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/model"
	"github.com/signalsfoundry/starfleet/picking"
	"github.com/signalsfoundry/starfleet/scene"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type shipsResponse struct {
	Count int          `json:"count"`
	Ships []model.Ship `json:"ships"`
}

// PointerRequest moves the pointer, in normalized device coordinates.
type PointerRequest struct {
	X     float64 `json:"x" validate:"gte=-1,lte=1"`
	Y     float64 `json:"y" validate:"gte=-1,lte=1"`
	Click bool    `json:"click"`
	Leave bool    `json:"leave"`
}

// SelectRequest selects a ship; an empty id deselects.
type SelectRequest struct {
	ShipID string `json:"ship_id" validate:"max=128"`
}

// InteractionRequest reports a user camera drag starting or ending.
type InteractionRequest struct {
	Active bool `json:"active"`
}

// ViewportRequest reports the renderer's viewport size in pixels.
type ViewportRequest struct {
	Width  int `json:"width" validate:"gt=0"`
	Height int `json:"height" validate:"gt=0"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	if status >= http.StatusInternalServerError {
		log := logging.LoggerFromContext(r.Context())
		if log == nil {
			log = s.log
		}
		log.Warn(r.Context(), "host API error",
			logging.String("code", code),
			logging.Err(err),
		)
	}
	respondJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return s.validate.Struct(v)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, cmd scene.Command) {
	if err := s.engine.Enqueue(cmd); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scene.ErrCommandQueueFull) {
			status = http.StatusServiceUnavailable
		}
		s.respondError(w, r, status, "ENQUEUE_FAILED", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listShips(w http.ResponseWriter, _ *http.Request) {
	ships := s.ships.All()
	respondJSON(w, http.StatusOK, shipsResponse{Count: len(ships), Ships: ships})
}

func (s *Server) getShip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ship, ok := s.ships.Get(id)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "NOT_FOUND", fmt.Errorf("ship %q not found", id))
		return
	}
	respondJSON(w, http.StatusOK, ship)
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	f := s.engine.Frame()
	if f == nil {
		s.respondError(w, r, http.StatusServiceUnavailable, "NO_FRAME", errors.New("no frame published yet"))
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) postPointer(w http.ResponseWriter, r *http.Request) {
	var req PointerRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	s.enqueue(w, r, req.command())
}

func (s *Server) postSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if req.ShipID != "" {
		if _, ok := s.ships.Get(req.ShipID); !ok {
			s.respondError(w, r, http.StatusNotFound, "NOT_FOUND", fmt.Errorf("ship %q not found", req.ShipID))
			return
		}
		// Ships the scene dropped (unknown vehicle, instance cap) cannot be
		// followed.
		if f := s.engine.Frame(); f != nil {
			if _, ok := f.Ship(req.ShipID); !ok {
				s.respondError(w, r, http.StatusConflict, "NOT_RENDERED", fmt.Errorf("ship %q is not rendered", req.ShipID))
				return
			}
		}
	}
	s.enqueue(w, r, scene.SelectCommand{ShipID: req.ShipID})
}

func (s *Server) postInteraction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	s.enqueue(w, r, scene.InteractionCommand{Active: req.Active})
}

func (s *Server) postViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	s.enqueue(w, r, scene.ViewportCommand{Width: req.Width, Height: req.Height})
}

func (p PointerRequest) command() scene.Command {
	return scene.PointerCommand{Pointer: picking.Pointer{X: p.X, Y: p.Y}, Click: p.Click, Leave: p.Leave}
}
