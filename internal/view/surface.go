package view

import "github.com/paulmach/orb"

// Kind classifies a map layer.
type Kind string

const (
	KindBase     Kind = "base"
	KindOverlay  Kind = "overlay"
	KindUnderlay Kind = "underlay"
	KindGrid     Kind = "grid"
)

// Layer is what the controller hands to a Surface when attaching.
type Layer struct {
	ID        string
	Kind      Kind
	WMSName   string
	Opacity   float64
	DefaultOn bool
}

// Surface is the mapping library as seen by the controller.
type Surface interface {
	Attach(l Layer)
	Detach(id string)
	BringToFront(id string)
	SetOpacity(id string, value float64)
	FitBounds(b orb.Bound)
}

// Op names a surface command.
type Op string

const (
	OpAttach       Op = "attach"
	OpDetach       Op = "detach"
	OpBringToFront Op = "bringToFront"
	OpSetOpacity   Op = "setOpacity"
	OpFitBounds    Op = "fitBounds"
)

// Command is one recorded surface call, in the shape the browser shim
// consumes. Bounds is [[south, west], [north, east]].
type Command struct {
	Op          Op           `json:"op"`
	Layer       string       `json:"layer,omitempty"`
	Kind        Kind         `json:"kind,omitempty"`
	WMSName     string       `json:"wmsName,omitempty"`
	Attribution string       `json:"attribution,omitempty"`
	Opacity     *float64     `json:"opacity,omitempty"`
	Bounds      [][2]float64 `json:"bounds,omitempty"`
}

// Recorder is a Surface that keeps the layer stack in memory and queues
// every effective change as a Command. Attach and Detach are no-ops when
// the layer is already in the requested state, so replaying a transition
// never produces duplicate commands.
//
// Recorder is not safe for concurrent use.
type Recorder struct {
	order   []string // bottom to top
	layers  map[string]Layer
	pending []Command
}

// NewRecorder returns an empty surface.
func NewRecorder() *Recorder {
	return &Recorder{layers: make(map[string]Layer)}
}

func (r *Recorder) Attach(l Layer) {
	if _, ok := r.layers[l.ID]; ok {
		return
	}
	r.layers[l.ID] = l
	r.order = append(r.order, l.ID)
	r.pending = append(r.pending, attachCommand(l))
}

func (r *Recorder) Detach(id string) {
	i := r.index(id)
	if i < 0 {
		return
	}
	delete(r.layers, id)
	r.order = append(r.order[:i], r.order[i+1:]...)
	r.pending = append(r.pending, Command{Op: OpDetach, Layer: id})
}

func (r *Recorder) BringToFront(id string) {
	i := r.index(id)
	if i < 0 || i == len(r.order)-1 {
		return
	}
	r.order = append(r.order[:i], r.order[i+1:]...)
	r.order = append(r.order, id)
	r.pending = append(r.pending, Command{Op: OpBringToFront, Layer: id})
}

func (r *Recorder) SetOpacity(id string, value float64) {
	l, ok := r.layers[id]
	if !ok || l.Opacity == value {
		return
	}
	l.Opacity = value
	r.layers[id] = l
	r.pending = append(r.pending, Command{Op: OpSetOpacity, Layer: id, Opacity: &value})
}

func (r *Recorder) FitBounds(b orb.Bound) {
	r.pending = append(r.pending, Command{Op: OpFitBounds, Bounds: LatLngBounds(b)})
}

// LatLngBounds converts a lon/lat bound to [[south, west], [north, east]].
func LatLngBounds(b orb.Bound) [][2]float64 {
	return [][2]float64{
		{b.Min.Lat(), b.Min.Lon()},
		{b.Max.Lat(), b.Max.Lon()},
	}
}

func (r *Recorder) index(id string) int {
	for i, v := range r.order {
		if v == id {
			return i
		}
	}
	return -1
}

// Attached reports whether id is on the surface.
func (r *Recorder) Attached(id string) bool {
	_, ok := r.layers[id]
	return ok
}

// Order returns attached layer ids from bottom to top.
func (r *Recorder) Order() []string {
	return append([]string(nil), r.order...)
}

// Above reports whether a is stacked above b. Both must be attached.
func (r *Recorder) Above(a, b string) bool {
	ia, ib := r.index(a), r.index(b)
	return ia >= 0 && ib >= 0 && ia > ib
}

// Opacity returns the current opacity of an attached layer.
func (r *Recorder) Opacity(id string) (float64, bool) {
	l, ok := r.layers[id]
	return l.Opacity, ok
}

// Drain returns and clears the queued commands.
func (r *Recorder) Drain() []Command {
	out := r.pending
	r.pending = nil
	return out
}

// Replay returns the commands that rebuild the current stack from an
// empty map, bottom layer first. The queue is left untouched.
func (r *Recorder) Replay() []Command {
	out := make([]Command, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, attachCommand(r.layers[id]))
	}
	return out
}

func attachCommand(l Layer) Command {
	op := l.Opacity
	return Command{Op: OpAttach, Layer: l.ID, Kind: l.Kind, WMSName: l.WMSName, Opacity: &op}
}
