package cluster

import (
	"fmt"
	"net"
	"os"
	"strconv"

	consul "github.com/hashicorp/consul/api"
	"github.com/hashicorp/go-hclog"
)

// Registration describes the game endpoint announced to Consul.
type Registration struct {
	Name string
	// Addr is the TCP listen address of the game protocol, host part optional.
	Addr string
	// HealthURL is polled by the agent; empty disables the check.
	HealthURL string
}

// ServiceID is unique per host so several servers can share a name.
func (r Registration) ServiceID() string {
	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	return fmt.Sprintf("%s-%s", r.Name, hostname)
}

func (r Registration) agentRegistration() (*consul.AgentServiceRegistration, error) {
	host, portStr, err := net.SplitHostPort(r.Addr)
	if err != nil {
		return nil, fmt.Errorf("service address %q: %w", r.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("service port %q: %w", portStr, err)
	}

	reg := &consul.AgentServiceRegistration{
		ID:      r.ServiceID(),
		Name:    r.Name,
		Address: host,
		Port:    port,
		Tags:    []string{"tcp", "line-protocol"},
	}
	if r.HealthURL != "" {
		reg.Check = &consul.AgentServiceCheck{
			HTTP:                           r.HealthURL,
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		}
	}
	return reg, nil
}

// Register announces the service and returns a function that withdraws it.
func Register(client *consul.Client, r Registration, logger hclog.Logger) (func() error, error) {
	reg, err := r.agentRegistration()
	if err != nil {
		return nil, err
	}
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return nil, fmt.Errorf("register %s in consul: %w", reg.ID, err)
	}
	logger.Info("registered in consul", "service", r.Name, "id", reg.ID, "port", reg.Port)

	return func() error {
		if err := client.Agent().ServiceDeregister(reg.ID); err != nil {
			return fmt.Errorf("deregister %s: %w", reg.ID, err)
		}
		logger.Info("deregistered from consul", "id", reg.ID)
		return nil
	}, nil
}
