package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/hurttlocker/kwgraph/internal/engine"
	"github.com/hurttlocker/kwgraph/internal/scene"
	"github.com/hurttlocker/kwgraph/internal/view"
)

// ErrUnknownGesture rejects a gesture type the engine does not handle.
var ErrUnknownGesture = errors.New("unknown gesture")

// Gesture types accepted over HTTP and the WebSocket.
const (
	GestureClick   = "click"
	GestureReset   = "reset"
	GestureLevels  = "levels"
	GestureShowAll = "show_all"
	GestureFilter  = "filter"
	GestureZoomIn  = "zoom_in"
	GestureZoomOut = "zoom_out"
	GestureFit     = "fit"
	GestureResize  = "resize"
	GestureConnect = "connect"
)

// Gesture is one user input. Only the fields its Type needs are read.
type Gesture struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Mask   *view.LevelMask `json:"mask,omitempty"`
	Text   string          `json:"text,omitempty"`
	Width  float64         `json:"width,omitempty"`
	Height float64         `json:"height,omitempty"`
	Source string          `json:"source,omitempty"`
	Target string          `json:"target,omitempty"`
}

// GestureResponse is returned by POST /api/gesture.
type GestureResponse struct {
	Result any         `json:"result,omitempty"`
	Scene  scene.Scene `json:"scene"`
}

// Apply runs g against s and returns the gesture's own result, if any.
func Apply(ctx context.Context, s *engine.Session, g Gesture) (any, error) {
	switch g.Type {
	case GestureClick:
		return s.Click(g.ID), nil
	case GestureReset:
		s.Reset()
	case GestureLevels:
		mask := view.AllLevels()
		if g.Mask != nil {
			mask = *g.Mask
		}
		s.ApplyLevels(mask)
	case GestureShowAll:
		s.ShowAll()
	case GestureFilter:
		s.Filter(g.Text)
	case GestureZoomIn:
		s.ZoomIn()
	case GestureZoomOut:
		s.ZoomOut()
	case GestureFit:
		s.Fit()
	case GestureResize:
		s.Resize(g.Width, g.Height)
	case GestureConnect:
		added, err := s.Connect(ctx, g.Source, g.Target)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"added": added}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGesture, g.Type)
	}
	return nil, nil
}
