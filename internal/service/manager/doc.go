// Package manager controls the service that runs the managed binary.
//
// Three back ends are provided: systemd (systemctl), command (operator
// supplied argv templates for sysvinit, OpenRC or supervisord) and process
// (direct process control via go-ps). Verified wraps any of them and makes
// Start wait until the service reports running and, optionally, answers a
// gRPC health check.
package manager
