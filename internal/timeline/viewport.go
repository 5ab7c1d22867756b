package timeline

// bottomSlack is how close to the bottom (in pixels) still counts as "at
// the bottom" for auto-scroll on new messages.
const bottomSlack = 100

// Viewport models the scrollable chat area: Top is the scroll offset,
// Height the visible window, ContentHeight the total rendered height.
type Viewport struct {
	Top           int
	Height        int
	ContentHeight int
}

// AtBottom reports whether the view shows the newest content, within slack.
func (v Viewport) AtBottom() bool {
	if v.ContentHeight <= v.Height {
		return true
	}
	return v.Top >= v.ContentHeight-v.Height-bottomSlack
}

// ScrollToBottom pins the view to the newest content.
func (v *Viewport) ScrollToBottom() {
	v.Top = v.maxTop()
}

// SetTop moves the scroll offset, clamped to the content range.
func (v *Viewport) SetTop(top int) {
	if top < 0 {
		top = 0
	}
	if max := v.maxTop(); top > max {
		top = max
	}
	v.Top = top
}

// Append grows the content at the bottom. The offset is unchanged; callers
// decide whether to follow.
func (v *Viewport) Append(height int) {
	v.ContentHeight += height
}

// Prepend grows the content at the top and shifts the offset by the
// inserted height so the visual anchor does not move.
func (v *Viewport) Prepend(height int) {
	v.ContentHeight += height
	v.Top += height
}

// Remove shrinks the content, clamping the offset.
func (v *Viewport) Remove(height int) {
	v.ContentHeight -= height
	if v.ContentHeight < 0 {
		v.ContentHeight = 0
	}
	if v.Top > v.maxTop() {
		v.Top = v.maxTop()
	}
}

func (v Viewport) maxTop() int {
	if v.ContentHeight <= v.Height {
		return 0
	}
	return v.ContentHeight - v.Height
}
