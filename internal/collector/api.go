package collector

// CounterItem is one machine's operating-hours counter as reported by the gateway.
type CounterItem struct {
	MachineID      int64   `json:"machineId"`
	OperatingHours float64 `json:"operatingHours"`
	// ReadAt is the gateway's local timestamp, "2006-01-02 15:04:05".
	ReadAt *string `json:"readAt"`
}

// ApiResponse models the top-level structure of the gateway's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int           `json:"page"`
		PageSize int           `json:"pageSize"`
		Total    int           `json:"total"`
		Items    []CounterItem `json:"items"`
	} `json:"data"`
}
