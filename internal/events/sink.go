package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	surfacecamera "github.com/siddh1004/Surface-Camera-Xamarin-Android"
)

// PictureEvent is published after a picture was stored
type PictureEvent struct {
	Camera  string    `msgpack:"camera"`
	ID      string    `msgpack:"id"`
	Path    string    `msgpack:"path"`
	Bytes   int       `msgpack:"bytes"`
	Rotated bool      `msgpack:"rotated"`
	TakenAt time.Time `msgpack:"taken_at"`
}

// Encode returns the msgpack encoding of ev
func (ev PictureEvent) Encode() ([]byte, error) {
	b, err := msgpack.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("events: encode picture event: %w", err)
	}
	return b, nil
}

// DecodePictureEvent parses a msgpack picture event
func DecodePictureEvent(b []byte) (PictureEvent, error) {
	var ev PictureEvent
	if err := msgpack.Unmarshal(b, &ev); err != nil {
		return PictureEvent{}, fmt.Errorf("events: decode picture event: %w", err)
	}
	return ev, nil
}

// NotifyingSink stores pictures in Next and then publishes a PictureEvent.
// Publish failures are logged; the picture is already stored.
type NotifyingSink struct {
	Next      surfacecamera.PictureSink
	Publisher Publisher
	Camera    string

	now func() time.Time
}

var _ surfacecamera.PictureSink = (*NotifyingSink)(nil)

// NewNotifyingSink wraps next
func NewNotifyingSink(next surfacecamera.PictureSink, pub Publisher, camera string) (*NotifyingSink, error) {
	if next == nil {
		return nil, fmt.Errorf("events: next sink is required")
	}
	if pub == nil {
		return nil, fmt.Errorf("events: publisher is required")
	}
	return &NotifyingSink{Next: next, Publisher: pub, Camera: camera, now: time.Now}, nil
}

// Store implements surfacecamera.PictureSink
func (s *NotifyingSink) Store(ctx context.Context, jpeg []byte, rotate bool) (string, string, error) {
	id, path, err := s.Next.Store(ctx, jpeg, rotate)
	if err != nil {
		return "", "", err
	}

	payload, err := PictureEvent{
		Camera:  s.Camera,
		ID:      id,
		Path:    path,
		Bytes:   len(jpeg),
		Rotated: rotate,
		TakenAt: s.now().UTC(),
	}.Encode()
	if err != nil {
		slog.Warn("events: picture event not published", "id", id, "error", err)
		return id, path, nil
	}
	if err := s.Publisher.Publish(ctx, "pictures", payload); err != nil {
		slog.Warn("events: picture event not published", "id", id, "error", err)
	}
	return id, path, nil
}
