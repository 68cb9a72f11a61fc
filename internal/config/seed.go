package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ShuttleSeed is one entry of the shuttles_config seed map.
type ShuttleSeed struct {
	Host        string `yaml:"host"`
	CommandPort int    `yaml:"command_port"`
}

// Seed is the on-disk configuration source described in spec §6.4: shuttle
// inventory plus the stock-name to eligible-shuttle-id routing table. It is
// loaded once at boot and used to seed the State Store; it is not consulted
// again by the core at runtime.
type Seed struct {
	ShuttlesConfig map[string]ShuttleSeed `yaml:"shuttles_config"`
	StockToShuttle map[string][]string    `yaml:"stock_to_shuttle"`
}

// LoadSeed reads and parses the YAML seed file at path. An empty path
// returns an empty Seed rather than an error, so a gateway with no seed
// file still starts (shuttles can be registered by other means).
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		return &Seed{
			ShuttlesConfig: map[string]ShuttleSeed{},
			StockToShuttle: map[string][]string{},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if seed.ShuttlesConfig == nil {
		seed.ShuttlesConfig = map[string]ShuttleSeed{}
	}
	if seed.StockToShuttle == nil {
		seed.StockToShuttle = map[string][]string{}
	}
	return &seed, nil
}
