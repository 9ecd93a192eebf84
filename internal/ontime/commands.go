package ontime

// Typed wrappers over SendJSON for the device's documented command set.
// Like SendRaw, every command is silently dropped when no socket is open.

// StartPlayback starts the loaded event.
func (c *Client) StartPlayback() { c.SendJSON("set-start", nil) }

// StartEvent starts the event with the given rundown id.
func (c *Client) StartEvent(eventID string) { c.SendJSON("set-startid", eventID) }

// PausePlayback pauses the running timer.
func (c *Client) PausePlayback() { c.SendJSON("set-pause", nil) }

// StopPlayback stops playback entirely.
func (c *Client) StopPlayback() { c.SendJSON("set-stop", nil) }

// PreviousEvent loads the previous event in the rundown.
func (c *Client) PreviousEvent() { c.SendJSON("set-previous", nil) }

// NextEvent loads the next event in the rundown.
func (c *Client) NextEvent() { c.SendJSON("set-next", nil) }

// ReloadEvent reloads the current event, resetting its timer.
func (c *Client) ReloadEvent() { c.SendJSON("set-reload", nil) }

// StartRoll puts the device into roll mode, following the wall clock.
func (c *Client) StartRoll() { c.SendJSON("set-roll", nil) }

// AddDelay adds minutes to the running timer. Negative values subtract.
func (c *Client) AddDelay(minutes int) { c.SendJSON("set-delay", minutes) }

// SetOnAir sets the on-air flag.
func (c *Client) SetOnAir(onAir bool) { c.SendJSON("set-onAir", onAir) }

// SetSpeakerMessage sets the speaker message text.
func (c *Client) SetSpeakerMessage(text string) { c.SendJSON("set-timer-message-text", text) }

// ShowSpeakerMessage toggles speaker message visibility.
func (c *Client) ShowSpeakerMessage(visible bool) { c.SendJSON("set-timer-message-visible", visible) }

// SetPublicMessage sets the public screen message text.
func (c *Client) SetPublicMessage(text string) { c.SendJSON("set-public-message-text", text) }

// ShowPublicMessage toggles public message visibility.
func (c *Client) ShowPublicMessage(visible bool) { c.SendJSON("set-public-message-visible", visible) }

// SetLowerMessage sets the lower-third message text.
func (c *Client) SetLowerMessage(text string) { c.SendJSON("set-lower-message-text", text) }

// ShowLowerMessage toggles lower-third message visibility.
func (c *Client) ShowLowerMessage(visible bool) { c.SendJSON("set-lower-message-visible", visible) }
