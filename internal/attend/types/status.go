package types

// StatusSnapshot is the point-in-time view served by the health endpoint.
// It is computed on demand and never stored.
type StatusSnapshot struct {
	Status          string `json:"status"`
	MQTTConnected   bool   `json:"mqtt_connected"`
	EmployeesLoaded int    `json:"employees_loaded"`
	TotalRecords    int64  `json:"total_records"`
	LogFile         string `json:"log_file"`
	LastDetection   string `json:"last_detection,omitempty"`
}
