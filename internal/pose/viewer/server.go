// Package viewer serves stored pose packets over HTTP: a JSON API, a
// VideoPose3D export, and raw versus smoothed trajectory charts.
package viewer

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/banshee-data/pose.report/internal/pose/packet"
	"github.com/banshee-data/pose.report/internal/pose/storage/sqlite"
)

// PacketReader is the read side of the packet store.
type PacketReader interface {
	List(videoID string, limit int) ([]sqlite.PacketSummary, error)
	Get(packetID string) (*packet.DataPacket, error)
}

// Server routes viewer requests.
type Server struct {
	store PacketReader
	mux   *http.ServeMux
}

// New returns a Server reading from store.
func New(store PacketReader) *Server {
	s := &Server{store: store, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /api/packets", s.handleListPackets)
	s.mux.HandleFunc("GET /api/packets/{id}", s.handleGetPacket)
	s.mux.HandleFunc("GET /api/packets/{id}/videopose3d", s.handleVideoPose3D)
	s.mux.HandleFunc("GET /charts/trajectory", s.handleTrajectoryChart)
	s.mux.HandleFunc("GET /charts/trajectory.png", s.handleTrajectoryPNG)
	return s
}

// Mux exposes the underlying mux so callers can attach more routes, such
// as the database debug console.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tracef("%s %s", r.Method, r.URL.Path)
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleListPackets(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	list, err := s.store.List(r.URL.Query().Get("video"), limit)
	if err != nil {
		diagf("list packets: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list packets")
		return
	}
	if list == nil {
		list = []sqlite.PacketSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// loadPacket fetches the packet named by the {id} path value or the id
// query parameter, writing the error response itself on failure.
func (s *Server) loadPacket(w http.ResponseWriter, r *http.Request) (*packet.DataPacket, bool) {
	id := r.PathValue("id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "missing packet id")
		return nil, false
	}
	pkt, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "packet not found")
			return nil, false
		}
		diagf("get packet %s: %v", id, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load packet")
		return nil, false
	}
	return pkt, true
}

func (s *Server) handleGetPacket(w http.ResponseWriter, r *http.Request) {
	pkt, ok := s.loadPacket(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := pkt.Encode(w); err != nil {
		diagf("encode packet: %v", err)
	}
}

func (s *Server) handleVideoPose3D(w http.ResponseWriter, r *http.Request) {
	pkt, ok := s.loadPacket(w, r)
	if !ok {
		return
	}
	var md packet.VideoMetadata
	if pkt.Meta != nil {
		md = packet.VideoMetadata{W: pkt.Meta.Width, H: pkt.Meta.Height, FPS: pkt.Meta.FPS}
	}
	export := packet.NewVideoPose3DExport()
	if err := export.Add(pkt, md); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := export.Encode(w); err != nil {
		diagf("encode export: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		diagf("failed to encode json response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
