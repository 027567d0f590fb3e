package di

import (
	"go.uber.org/dig"
)

// Container 依赖注入容器的全局实例
var Container *dig.Container

// InitContainer 初始化依赖注入容器并注册提供者
func InitContainer(configPath string) (*dig.Container, error) {
	Container = dig.New()
	if err := RegisterProviders(Container, configPath); err != nil {
		return nil, err
	}
	return Container, nil
}

// Invoke 封装dig.Invoke
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}
