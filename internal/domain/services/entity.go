package services

import "fmt"

// ServiceInfo describes one workload discovered in the cluster.
// Identity is (namespace, type, name); the remote store reconciles by ServiceKey.
type ServiceInfo struct {
	Name           string `json:"name"`
	Namespace      string `json:"namespace"`
	ServiceType    string `json:"type"`
	Classification string `json:"classification"`
	Deleted        bool   `json:"deleted"`
}

// ServiceKey composite logical key dipakai buat upsert di remote store
func (s ServiceInfo) ServiceKey() string {
	return fmt.Sprintf("%s/%s/%s", s.Namespace, s.ServiceType, s.Name)
}
