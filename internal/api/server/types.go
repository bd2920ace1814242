package server

type statusResponse struct {
	PortWorking   bool `json:"port_working"`
	ServerWorking bool `json:"server_working"`
}
