package client

// Project mirrors the project resource.
type Project struct {
	Address           string `json:"address"`
	Owner             string `json:"owner"`
	NamespaceID       string `json:"namespace_id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	DefaultRateLimit  uint32 `json:"default_rate_limit"`
	TotalCredentials  uint16 `json:"total_credentials"`
	ActiveCredentials uint16 `json:"active_credentials"`
	CreatedAt         uint64 `json:"created_at"`
}

// CreateProjectRequest creates a new project namespace.
type CreateProjectRequest struct {
	NamespaceID      string `json:"namespace_id,omitempty"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	DefaultRateLimit uint32 `json:"default_rate_limit"`
}

// CreateProject creates a project owned by the client's identity.
func (c *Client) CreateProject(req CreateProjectRequest) (*Project, error) {
	var p Project
	if err := c.do("POST", "/api/v1/projects", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProject fetches a project by address.
func (c *Client) GetProject(address string) (*Project, error) {
	var p Project
	if err := c.do("GET", "/api/v1/projects/"+address, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// TransferProject hands the project to a new owner identity.
func (c *Client) TransferProject(address, newOwner string) error {
	return c.do("POST", "/api/v1/projects/"+address+"/transfer",
		map[string]string{"new_owner": newOwner}, nil)
}

// CloseProject destroys an empty project.
func (c *Client) CloseProject(address string) error {
	return c.do("DELETE", "/api/v1/projects/"+address, nil, nil)
}
