package bridge

// Move places the pointer at absolute screen coordinates.
func (c *Client) Move(x, y int) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	_, err := c.request("POST", c.sessionPath("/actions/move"), PointModel{X: x, Y: y})
	return err
}

// Click presses and releases the primary button at the pointer position.
func (c *Client) Click() error {
	if err := c.requireSession(); err != nil {
		return err
	}
	_, err := c.request("POST", c.sessionPath("/actions/click"), map[string]interface{}{})
	return err
}

// Drag presses at (x1,y1), moves to (x2,y2) and releases.
func (c *Client) Drag(x1, y1, x2, y2 int) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	_, err := c.request("POST", c.sessionPath("/actions/drag"), DragRequest{X1: x1, Y1: y1, X2: x2, Y2: y2})
	return err
}

// Write types text into the focused item.
func (c *Client) Write(text string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	_, err := c.request("POST", c.sessionPath("/keys"), KeysRequest{Text: text})
	return err
}
