package values

// Origin is the network origin of a request or audited action.
type Origin struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}
