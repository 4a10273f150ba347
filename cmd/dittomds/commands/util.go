package commands

import (
	"net"
	"strconv"
)

// hostOf and portOf split a validated "host:port" listen address into the
// separate fields pkg/adapter.BaseConfig wants.
func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func portOf(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}
