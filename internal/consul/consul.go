package consul

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

func NewClient(addr string) (*consulapi.Client, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return client, nil
}

// RegisterService registers name at host:port with an HTTP check against
// /ping and returns the service id to deregister with.
func RegisterService(client *consulapi.Client, name, host string, port int) (string, error) {
	id := fmt.Sprintf("%s-%s-%d", name, host, port)
	reg := &consulapi.AgentServiceRegistration{
		ID:      id,
		Name:    name,
		Address: host,
		Port:    port,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/ping",
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return "", fmt.Errorf("failed to register %s with consul: %w", name, err)
	}
	return id, nil
}

func Deregister(client *consulapi.Client, serviceID string) error {
	if err := client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister %s: %w", serviceID, err)
	}
	return nil
}

// GetServiceAddress returns the address of the first healthy instance of service.
func GetServiceAddress(client *consulapi.Client, service string) (string, int, error) {
	entries, _, err := client.Health().Service(service, "", true, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to query %s: %w", service, err)
	}
	if len(entries) == 0 {
		return "", 0, errors.New("no healthy instance of " + service)
	}
	s := entries[0].Service
	addr := s.Address
	if addr == "" {
		addr = entries[0].Node.Address
	}
	return addr, s.Port, nil
}
