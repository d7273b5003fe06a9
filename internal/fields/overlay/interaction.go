package overlay

import (
	"errors"
	"fmt"

	"github.com/signflow/signflow-backend/internal/fields/collection"
	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/internal/fields/geometry"
)

// MinFieldSize is the smallest width or height, in points, a resize can produce
const MinFieldSize = 8.0

var ErrInvalidTransition = errors.New("invalid interaction transition")

// State of the editing gesture
type State int

const (
	StateIdle State = iota
	StateSelected
	StateDragging
	StateResizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelected:
		return "selected"
	case StateDragging:
		return "dragging"
	case StateResizing:
		return "resizing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Gesture started by a pointer-down
type Gesture int

const (
	GestureDrag Gesture = iota
	GestureResize
)

// Interaction drives select, drag, resize and delete for the edit view.
// Pointer coordinates are screen pixels; geometry is committed to the
// manager in PDF points on release.
type Interaction struct {
	m     *collection.Manager
	scale float64

	state   State
	fieldID string

	// committed is the field as it was when the gesture began
	committed domain.Field
	originX   float64
	originY   float64
	preview   domain.Field
}

// NewInteraction starts in idle at the given scale factor
func NewInteraction(m *collection.Manager, scale float64) *Interaction {
	return &Interaction{m: m, scale: scale}
}

// State returns the current state
func (in *Interaction) State() State { return in.state }

// FieldID returns the field the interaction is focused on, if any
func (in *Interaction) FieldID() string { return in.fieldID }

// SetScale updates the scale factor after the page was re-measured.
// It is rejected mid-gesture.
func (in *Interaction) SetScale(scale float64) error {
	if in.state == StateDragging || in.state == StateResizing {
		return fmt.Errorf("%w: rescale while %s", ErrInvalidTransition, in.state)
	}
	in.scale = scale
	return nil
}

// Select focuses a field. Selecting another field replaces the selection.
func (in *Interaction) Select(id string) error {
	if in.state == StateDragging || in.state == StateResizing {
		return fmt.Errorf("%w: select while %s", ErrInvalidTransition, in.state)
	}
	if err := in.m.Select(id); err != nil {
		return err
	}
	in.fieldID = id
	in.state = StateSelected
	return nil
}

// Deselect returns to idle
func (in *Interaction) Deselect() error {
	if in.state != StateSelected {
		return fmt.Errorf("%w: deselect while %s", ErrInvalidTransition, in.state)
	}
	if err := in.m.Select(""); err != nil {
		return err
	}
	in.fieldID = ""
	in.state = StateIdle
	return nil
}

// PointerDown starts a drag or resize on a field. A pointer-down on a
// field that is not selected selects it first.
func (in *Interaction) PointerDown(id string, g Gesture, x, y float64) error {
	if in.state == StateDragging || in.state == StateResizing {
		return fmt.Errorf("%w: pointer down while %s", ErrInvalidTransition, in.state)
	}
	if in.state == StateIdle || in.fieldID != id {
		if err := in.Select(id); err != nil {
			return err
		}
	}

	f, ok := in.m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", collection.ErrFieldNotFound, id)
	}

	in.committed = f
	in.preview = f
	in.originX, in.originY = x, y
	if g == GestureResize {
		in.state = StateResizing
	} else {
		in.state = StateDragging
	}
	return nil
}

// PointerMove updates the in-progress geometry and returns it. Nothing is
// written to the manager until PointerUp.
func (in *Interaction) PointerMove(x, y float64) (domain.Field, error) {
	if in.state != StateDragging && in.state != StateResizing {
		return domain.Field{}, fmt.Errorf("%w: pointer move while %s", ErrInvalidTransition, in.state)
	}
	in.preview = in.apply(x, y)
	return in.preview, nil
}

// PointerUp commits the gesture through the inverse transform and returns
// to idle. changed is false when the pointer moved less than the
// manager's tolerance.
func (in *Interaction) PointerUp(x, y float64) (changed bool, err error) {
	if in.state != StateDragging && in.state != StateResizing {
		return false, fmt.Errorf("%w: pointer up while %s", ErrInvalidTransition, in.state)
	}

	final := in.apply(x, y)
	changed, err = in.m.Update(final)
	if err != nil {
		in.state = StateSelected
		return false, err
	}

	if err := in.m.Select(""); err != nil {
		return changed, err
	}
	in.state = StateIdle
	in.fieldID = ""
	return changed, nil
}

// PointerCancel aborts the gesture. The manager keeps the last committed
// geometry and the field stays selected.
func (in *Interaction) PointerCancel() error {
	if in.state != StateDragging && in.state != StateResizing {
		return fmt.Errorf("%w: cancel while %s", ErrInvalidTransition, in.state)
	}
	in.preview = in.committed
	in.state = StateSelected
	return nil
}

// Preview returns the geometry to draw for the focused field: the
// in-progress geometry during a gesture, the committed one otherwise.
func (in *Interaction) Preview() (domain.Field, bool) {
	switch in.state {
	case StateDragging, StateResizing:
		return in.preview, true
	case StateSelected:
		return in.m.Get(in.fieldID)
	default:
		return domain.Field{}, false
	}
}

// Delete removes the selected field. Only valid in the selected state.
func (in *Interaction) Delete() error {
	if in.state != StateSelected {
		return fmt.Errorf("%w: delete while %s", ErrInvalidTransition, in.state)
	}
	if err := in.m.Delete(in.fieldID); err != nil {
		return err
	}
	in.fieldID = ""
	in.state = StateIdle
	return nil
}

func (in *Interaction) apply(x, y float64) domain.Field {
	dx := geometry.ToPDF(x-in.originX, in.scale)
	dy := geometry.ToPDF(y-in.originY, in.scale)

	f := in.committed
	if in.state == StateResizing {
		f.Width = max(MinFieldSize, in.committed.Width+dx)
		f.Height = max(MinFieldSize, in.committed.Height+dy)
		return f
	}
	f.X = max(0, in.committed.X+dx)
	f.Y = max(0, in.committed.Y+dy)
	return f
}
