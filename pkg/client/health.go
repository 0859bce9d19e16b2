package client

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Slot   uint64 `json:"slot"`
	Events string `json:"events"`
}

// Health checks the server.
func (c *Client) Health() (*HealthResponse, error) {
	var h HealthResponse
	if err := c.do("GET", "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
