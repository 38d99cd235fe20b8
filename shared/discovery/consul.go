package discovery

import (
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	consulapi "github.com/hashicorp/consul/api"
)

// Registry registers service instances with a Consul agent.
type Registry struct {
	client *consulapi.Client
}

// Registration identifies one running instance.
type Registration struct {
	ID         string
	Name       string
	Address    string
	Port       int
	HealthAddr string
	Tags       []string
}

// NewConsulRegistry creates a registry that talks to the agent at addr.
func NewConsulRegistry(addr string) (*Registry, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	return &Registry{client: client}, nil
}

// NewRegistration builds a Registration for name listening on httpAddr, with
// the gRPC health endpoint at healthAddr.
func NewRegistration(name, httpAddr, healthAddr string) (Registration, error) {
	host, portStr, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return Registration{}, fmt.Errorf("parse http address %q: %w", httpAddr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Registration{}, fmt.Errorf("parse http port %q: %w", portStr, err)
	}

	return Registration{
		ID:         name + "-" + uuid.NewString(),
		Name:       name,
		Address:    host,
		Port:       port,
		HealthAddr: healthAddr,
	}, nil
}

// Register adds the instance to the catalog with a gRPC health check.
func (r *Registry) Register(reg Registration) error {
	svc := &consulapi.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Name,
		Address: reg.Address,
		Port:    reg.Port,
		Tags:    reg.Tags,
	}

	if reg.HealthAddr != "" {
		svc.Check = &consulapi.AgentServiceCheck{
			GRPC:                           reg.HealthAddr + "/" + reg.Name,
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		}
	}

	if err := r.client.Agent().ServiceRegister(svc); err != nil {
		return fmt.Errorf("register service %s: %w", reg.ID, err)
	}

	return nil
}

// Deregister removes the instance from the catalog.
func (r *Registry) Deregister(id string) error {
	if err := r.client.Agent().ServiceDeregister(id); err != nil {
		return fmt.Errorf("deregister service %s: %w", id, err)
	}

	return nil
}
