package resource

import "media-pipeline-service/pkg/manager"

func init() {
	// 注册资源插件，关闭时按相反顺序
	manager.RegisterResourcePlugin(&DatabaseResourcePlugin{})
	manager.RegisterResourcePlugin(&RedisResourcePlugin{})
	manager.RegisterResourcePlugin(&MinioResourcePlugin{})
	manager.RegisterResourcePlugin(&KafkaResourcePlugin{})
	manager.RegisterResourcePlugin(&RabbitMQResourcePlugin{})
	manager.RegisterResourcePlugin(&EtcdResourcePlugin{})
}
