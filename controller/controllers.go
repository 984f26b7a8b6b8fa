// controller/controllers.go
package controller

type Controllers struct {
	Health   *HealthController
	Proxy    *ProxyController
	Grants   *GrantController
	Audit    *AuditController
	Realtime *RealtimeController
}
