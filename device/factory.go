package device

import (
	"fmt"
	"slices"

	"myohand/config"
)

// BusFactory 总线工厂
type BusFactory struct {
	constructors map[string]func(cfg config.BusConfig) (Bus, error)
}

var defaultFactory = &BusFactory{
	constructors: make(map[string]func(cfg config.BusConfig) (Bus, error)),
}

// RegisterBusType 注册总线类型
func RegisterBusType(name string, constructor func(cfg config.BusConfig) (Bus, error)) {
	defaultFactory.constructors[name] = constructor
}

// CreateBus 创建总线实例
func CreateBus(cfg config.BusConfig) (Bus, error) {
	constructor, ok := defaultFactory.constructors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("未知的总线类型: %s", cfg.Type)
	}
	return constructor(cfg)
}

// GetSupportedBusTypes 获取支持的总线类型列表
func GetSupportedBusTypes() []string {
	types := make([]string, 0, len(defaultFactory.constructors))
	for name := range defaultFactory.constructors {
		types = append(types, name)
	}
	slices.Sort(types)
	return types
}
