package sqlite

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pose.report/internal/pose/packet"
)

// ErrNotFound is returned when a packet or run does not exist.
var ErrNotFound = errors.New("not found")

// PacketSummary is the listing view of a stored packet, without keypoints.
type PacketSummary struct {
	PacketID      string `json:"packet_id"`
	VideoID       string `json:"video_id"`
	Detector      string `json:"detector"`
	FrameCount    int    `json:"frame_count"`
	Smoothed      bool   `json:"smoothed"`
	FilledSamples int    `json:"filled_samples"`
	CreatedAt     int64  `json:"created_at"`
}

// PacketStore persists encoded data packets.
type PacketStore struct {
	db *sql.DB
}

// NewPacketStore creates a new PacketStore.
func NewPacketStore(db *sql.DB) *PacketStore {
	return &PacketStore{db: db}
}

// Insert stores pkt and returns its packet ID. A packet whose Meta already
// carries an ID keeps it; otherwise a UUID is generated and recorded in
// the stored Meta. pkt itself is not modified.
func (s *PacketStore) Insert(pkt *packet.DataPacket) (string, error) {
	if err := pkt.Validate(); err != nil {
		return "", fmt.Errorf("invalid packet: %w", err)
	}

	stored := *pkt
	var meta packet.Meta
	if pkt.Meta != nil {
		meta = *pkt.Meta
	}
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	stored.Meta = &meta

	var buf bytes.Buffer
	if err := stored.Encode(&buf); err != nil {
		return "", fmt.Errorf("encode packet: %w", err)
	}

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO pose_packets (
				packet_id, video_id, detector, frame_count,
				smoothed, filled_samples, packet_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			meta.ID, stored.VideoID, meta.Detector, stored.FrameCount,
			meta.Smoothed, meta.FilledSamples, buf.String(), meta.CreatedAt.UnixNano(),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert packet: %w", err)
	}
	diagf("stored packet %s for %s (%d frames)", meta.ID, stored.VideoID, stored.FrameCount)
	return meta.ID, nil
}

// Get loads and decodes a packet by ID.
func (s *PacketStore) Get(packetID string) (*packet.DataPacket, error) {
	var body string
	err := s.db.QueryRow(`SELECT packet_json FROM pose_packets WHERE packet_id = ?`, packetID).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("packet %s: %w", packetID, ErrNotFound)
		}
		return nil, fmt.Errorf("query packet: %w", err)
	}
	return packet.Decode(strings.NewReader(body))
}

// List returns packet summaries, newest first. An empty videoID lists every
// packet; limit <= 0 means no limit.
func (s *PacketStore) List(videoID string, limit int) ([]PacketSummary, error) {
	query := `
		SELECT packet_id, video_id, detector, frame_count,
		       smoothed, filled_samples, created_at
		FROM pose_packets`
	var args []interface{}
	if videoID != "" {
		query += ` WHERE video_id = ?`
		args = append(args, videoID)
	}
	query += ` ORDER BY created_at DESC, packet_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query packets: %w", err)
	}
	defer rows.Close()

	var out []PacketSummary
	for rows.Next() {
		var p PacketSummary
		if err := rows.Scan(&p.PacketID, &p.VideoID, &p.Detector, &p.FrameCount,
			&p.Smoothed, &p.FilledSamples, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan packet row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Latest returns the most recent packet stored for videoID.
func (s *PacketStore) Latest(videoID string) (*packet.DataPacket, error) {
	list, err := s.List(videoID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	return s.Get(list[0].PacketID)
}

// Delete removes a packet by ID.
func (s *PacketStore) Delete(packetID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM pose_packets WHERE packet_id = ?`, packetID)
		if err != nil {
			return fmt.Errorf("delete packet: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("packet %s: %w", packetID, ErrNotFound)
		}
		return nil
	})
}
