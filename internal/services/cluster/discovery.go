package cluster

import (
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"

	consul "github.com/hashicorp/consul/api"
)

// DiscoverAnyHealthy returns host:port of a random passing instance of serviceName.
func DiscoverAnyHealthy(client *consul.Client, serviceName string) (string, error) {
	entries, _, err := client.Health().Service(serviceName, "", true, nil)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", serviceName, err)
	}
	return pickAddress(entries, rand.IntN)
}

func pickAddress(entries []*consul.ServiceEntry, intn func(int) int) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("no healthy instance")
	}
	s := entries[intn(len(entries))]
	addr := s.Service.Address
	if addr == "" && s.Node != nil {
		addr = s.Node.Address
	}
	return net.JoinHostPort(addr, strconv.Itoa(s.Service.Port)), nil
}
