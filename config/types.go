package config

// 单轮搜索参数，时间单位均为秒
type RaptorConfig struct {
	MaxRounds     int `yaml:"maxRounds" validate:"gte=1,lte=16"`
	BoardSlack    int `yaml:"boardSlack" validate:"gte=0"`
	AlightSlack   int `yaml:"alightSlack" validate:"gte=0"`
	TransferSlack int `yaml:"transferSlack" validate:"gte=0"`
	SearchWindow  int `yaml:"searchWindow" validate:"gt=0"`
	// 搜索窗口不超过该值时，以ProbeStep为步长额外探测更晚的上车时刻
	ProbeWindowLimit int `yaml:"probeWindowLimit" validate:"gte=0"`
	ProbeStep        int `yaml:"probeStep" validate:"gt=0"`
	// 单次请求的时间预算（ms），0表示不限制
	TimeoutMS int `yaml:"timeoutMS" validate:"gte=0"`
}

// 广义代价参数
type CostConfig struct {
	BoardCost      int     `yaml:"boardCost" validate:"gte=0"`
	TransferCost   int     `yaml:"transferCost" validate:"gte=0"`
	WaitReluctance float64 `yaml:"waitReluctance" validate:"gte=0"`
	WalkReluctance float64 `yaml:"walkReluctance" validate:"gte=0"`
	CarReluctance  float64 `yaml:"carReluctance" validate:"gte=0"`
	// 各公交方式的乘车代价系数，key为方式名（BUS、SUBWAY、FLEX等）
	TransitReluctance map[string]float64 `yaml:"transitReluctance" validate:"dive,keys,required,endkeys,gte=0"`
}

type StreetConfig struct {
	// 步行速度（m/s）
	WalkSpeed float64 `yaml:"walkSpeed" validate:"gt=0"`
	// 无实时路况时的默认驾车速度（m/s）
	DriveSpeed          float64 `yaml:"driveSpeed" validate:"gt=0"`
	MaxWalkDuration     int     `yaml:"maxWalkDuration" validate:"gt=0"`
	MaxTransferDuration int     `yaml:"maxTransferDuration" validate:"gt=0"`
	// 步行直达方案的最长时长（s），0为不限
	MaxDirectWalkDuration int `yaml:"maxDirectWalkDuration" validate:"gte=0"`
	// 站点挂接到路网顶点的最大距离（m）
	StopLinkRadius  float64 `yaml:"stopLinkRadius" validate:"gt=0"`
	NearbyCacheSize int     `yaml:"nearbyCacheSize" validate:"gte=0"`
	// 是否返回驾车直达方案
	DirectCar bool `yaml:"directCar"`
}

type FlexConfig struct {
	Enabled             bool    `yaml:"enabled"`
	MaxFlexTripDuration int     `yaml:"maxFlexTripDuration" validate:"gt=0"`
	MaxWalkDistance     float64 `yaml:"maxWalkDistance" validate:"gte=0"`
	MinTransitDuration  int     `yaml:"minTransitDuration" validate:"gte=0"`
	MaxCandidates       int     `yaml:"maxCandidates" validate:"gte=0"`
	Parallelism         int     `yaml:"parallelism" validate:"gte=1"`
}

type FilterConfig struct {
	GroupSimilarityKeepN int  `yaml:"groupSimilarityKeepN" validate:"gte=0"`
	StreetOnlyIsBetter   bool `yaml:"streetOnlyIsBetter"`
	StreetOnlyBuffer     int  `yaml:"streetOnlyBuffer" validate:"gte=0"`
	RemoveWalkOnly       bool `yaml:"removeWalkOnly"`
	FlexLegality         bool `yaml:"flexLegality"`
	// 排序规则，自左向右依次比较
	Sort           []string `yaml:"sort"`
	MinItineraries int      `yaml:"minItineraries" validate:"gte=0"`
	MaxItineraries int      `yaml:"maxItineraries" validate:"gt=0"`
	Debug          bool     `yaml:"debug"`
}

type Config struct {
	Raptor RaptorConfig `yaml:"raptor"`
	Cost   CostConfig   `yaml:"cost"`
	Street StreetConfig `yaml:"street"`
	Flex   FlexConfig   `yaml:"flex"`
	Filter FilterConfig `yaml:"filter"`
}
