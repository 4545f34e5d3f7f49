package state

var (
	DBG_log_router        = false
	DBG_log_route_table   = false
	DBG_log_route_changes = false
	DBG_log_transport     = false
	DBG_trace             = false
	DBG_debug             = false
)

var (
	NodeConfigPath    = "/etc/dvnet/node.yaml"
	CentralConfigPath = "/etc/dvnet/central.yaml"
)
