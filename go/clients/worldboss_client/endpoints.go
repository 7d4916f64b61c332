package worldboss_client

const (
	// API Endpoints
	StatusEndpoint  = "/world_boss/create_event/"
	RefreshEndpoint = "/token/refresh/"

	// Headers
	AcceptHeader    = "Accept"
	JsonContentType = "application/json"
)
