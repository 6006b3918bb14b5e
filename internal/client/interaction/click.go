package interaction

// Click feeds one pointer click. The first click waits for the double-click
// window; a second click inside the window cancels it and, on an object,
// opens an annotation intent. Clicks during a drag are ignored.
func (c *Controller) Click(hit Hit) {
	switch c.state {
	case StateDragging:
		return
	case StatePendingSingleClick:
		c.cancelClickTimer()
		c.state = StateIdle
		c.doubleClick(hit)
	default:
		c.pending = hit
		c.state = StatePendingSingleClick
		c.clickSeq++
		seq := c.clickSeq
		c.clickTimer = c.clock.AfterFunc(c.window, func() { c.expireClick(seq) })
	}
}

func (c *Controller) expireClick(seq uint64) {
	if seq != c.clickSeq || c.state != StatePendingSingleClick {
		return
	}
	c.clickTimer = nil
	c.state = StateIdle
	c.singleClick(c.pending)
}

// resolvePendingClick runs a waiting single click now.
func (c *Controller) resolvePendingClick() {
	if c.state != StatePendingSingleClick {
		return
	}
	c.cancelClickTimer()
	c.state = StateIdle
	c.singleClick(c.pending)
}

func (c *Controller) cancelClickTimer() {
	c.clickSeq++
	if c.clickTimer != nil {
		c.clickTimer.Stop()
		c.clickTimer = nil
	}
}

func (c *Controller) singleClick(hit Hit) {
	c.pending = Hit{}
	c.focus = ""
	c.intent = nil
	if c.exists(hit.ObjectID) {
		c.selected = hit.ObjectID
	} else {
		c.selected = ""
	}
	c.render()
}

func (c *Controller) doubleClick(hit Hit) {
	c.pending = Hit{}
	if !c.exists(hit.ObjectID) {
		return
	}
	c.intent = &AnnotationIntent{
		TargetObjectID: hit.ObjectID,
		Point:          hit.Point,
		Normal:         hit.Normal,
	}
	c.focus = hit.ObjectID
	c.notify("notices.annotation_placing", false, nil)
	c.render()
}
