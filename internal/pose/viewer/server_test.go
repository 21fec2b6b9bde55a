package viewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pose.report/internal/pose/l2frames"
	"github.com/banshee-data/pose.report/internal/pose/packet"
	"github.com/banshee-data/pose.report/internal/pose/storage/sqlite"
)

func squatPacket(t *testing.T, missing bool) *packet.DataPacket {
	t.Helper()
	seq := l2frames.NewSequence(8)
	for i := 0; i < 8; i++ {
		var f l2frames.Frame
		for j := range f {
			f[j] = l2frames.Keypoint{X: 100, Y: 300 + float64(i), Score: 0.9, Valid: true}
		}
		seq.Append(f)
	}
	smoothed := seq.Clone()
	if missing {
		smoothed.Frames[3][l2frames.LeftHip] = l2frames.Keypoint{}
	}
	pkt, err := packet.New("squat.mp4", seq, smoothed, seq, &packet.Meta{Width: 640, Height: 480, FPS: 30, CreatedAt: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	return pkt
}

func newTestServer(t *testing.T) (*Server, map[string]string) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "viewer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := sqlite.NewPacketStore(db.DB)
	ids := map[string]string{}
	for name, missing := range map[string]bool{"full": false, "gappy": true} {
		id, err := store.Insert(squatPacket(t, missing))
		require.NoError(t, err)
		ids[name] = id
	}
	return New(store), ids
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestListPackets(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/packets")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []sqlite.PacketSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = get(t, s, "/api/packets?video=other.mp4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = get(t, s, "/api/packets?limit=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPacket(t *testing.T) {
	s, ids := newTestServer(t)

	rec := get(t, s, "/api/packets/"+ids["gappy"])
	require.Equal(t, http.StatusOK, rec.Code)
	pkt, err := packet.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 8, pkt.FrameCount)

	rec = get(t, s, "/api/packets/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "packet not found")

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/packets/"+ids["full"], nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestVideoPose3DExport(t *testing.T) {
	s, ids := newTestServer(t)

	rec := get(t, s, "/api/packets/"+ids["full"]+"/videopose3d")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Metadata struct {
			VideoMetadata map[string]packet.VideoMetadata `json:"video_metadata"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, packet.VideoMetadata{W: 640, H: 480, FPS: 30}, body.Metadata.VideoMetadata["squat.mp4"])

	rec = get(t, s, "/api/packets/"+ids["gappy"]+"/videopose3d")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTrajectoryChart(t *testing.T) {
	s, ids := newTestServer(t)

	rec := get(t, s, fmt.Sprintf("/charts/trajectory?id=%s&joint=left_hip&axis=y", ids["gappy"]))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	body := rec.Body.String()
	assert.Contains(t, body, "smoothed")
	assert.Contains(t, body, `"-"`)

	rec = get(t, s, "/charts/trajectory?id="+ids["full"]+"&joint=tail")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = get(t, s, "/charts/trajectory")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrajectoryPNG(t *testing.T) {
	s, ids := newTestServer(t)

	rec := get(t, s, "/charts/trajectory.png?id="+ids["full"]+"&axis=x")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

type failingStore struct{}

func (failingStore) List(string, int) ([]sqlite.PacketSummary, error) {
	return nil, errors.New("disk I/O error")
}

func (failingStore) Get(string) (*packet.DataPacket, error) {
	return nil, errors.New("disk I/O error")
}

func TestStoreFailures(t *testing.T) {
	s := New(failingStore{})
	assert.Equal(t, http.StatusInternalServerError, get(t, s, "/api/packets").Code)
	rec := get(t, s, "/api/packets/abc")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O", "internal errors are not leaked")
}
