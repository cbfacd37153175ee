package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrBadProbe  = errors.New("probeStep should not exceed probeWindowLimit")
	ErrBadBounds = errors.New("minItineraries should not exceed maxItineraries")
)

// 默认配置
func Default() *Config {
	return &Config{
		Raptor: RaptorConfig{
			MaxRounds:        6,
			BoardSlack:       0,
			AlightSlack:      0,
			TransferSlack:    60,
			SearchWindow:     3600,
			ProbeWindowLimit: 2 * 3600,
			ProbeStep:        60,
			TimeoutMS:        3000,
		},
		Cost: CostConfig{
			BoardCost:      60,
			TransferCost:   120,
			WaitReluctance: 1.0,
			WalkReluctance: 2.0,
			CarReluctance:  1.0,
			TransitReluctance: map[string]float64{
				"BUS":    1.0,
				"TRAM":   1.0,
				"SUBWAY": 1.0,
				"RAIL":   1.0,
				"FERRY":  1.0,
				"FLEX":   1.2,
			},
		},
		Street: StreetConfig{
			WalkSpeed:             1.33,
			DriveSpeed:            11.1,
			MaxWalkDuration:       15 * 60,
			MaxTransferDuration:   10 * 60,
			MaxDirectWalkDuration: 2 * 3600,
			StopLinkRadius:        300,
			NearbyCacheSize:       10000,
		},
		Flex: FlexConfig{
			Enabled:             true,
			MaxFlexTripDuration: 45 * 60,
			MaxWalkDistance:     2000,
			MinTransitDuration:  5 * 60,
			MaxCandidates:       50,
			Parallelism:         4,
		},
		Filter: FilterConfig{
			GroupSimilarityKeepN: 1,
			StreetOnlyIsBetter:   true,
			StreetOnlyBuffer:     0,
			RemoveWalkOnly:       true,
			FlexLegality:         true,
			Sort:                 []string{"STREET_ONLY_FIRST", "ARRIVAL_OR_DEPARTURE", "GENERALIZED_COST", "NUMBER_OF_TRANSFERS"},
			MinItineraries:       1,
			MaxItineraries:       10,
		},
	}
}

// 读取YAML配置，未给出的字段取默认值
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Raptor.ProbeWindowLimit > 0 && c.Raptor.ProbeStep > c.Raptor.ProbeWindowLimit {
		return ErrBadProbe
	}
	if c.Filter.MinItineraries > c.Filter.MaxItineraries {
		return ErrBadBounds
	}
	return nil
}

// 指定方式的乘车代价系数，未配置时为1
func (c *CostConfig) Reluctance(mode string) float64 {
	if r, ok := c.TransitReluctance[mode]; ok {
		return r
	}
	return 1.0
}
