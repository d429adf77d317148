package movies

import (
	"net"
	"time"
)

// ConnectivityChecker answers whether the network is reachable at all, so the
// pipeline can fail fast before attempting any remote write.
type ConnectivityChecker interface {
	IsNetworkAvailable() bool
}

// DialChecker probes connectivity with a short TCP dial.
type DialChecker struct {
	Addr    string
	Timeout time.Duration
}

// NewDialChecker returns a checker probing a public resolver endpoint.
func NewDialChecker() *DialChecker {
	return &DialChecker{Addr: "1.1.1.1:443", Timeout: 3 * time.Second}
}

func (c *DialChecker) IsNetworkAvailable() bool {
	conn, err := net.DialTimeout("tcp", c.Addr, c.Timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
