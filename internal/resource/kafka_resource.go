package resource

import (
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/kafka"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/manager"
)

// KafkaResource 打开共享客户端并创建作业提交与作业事件主题
type KafkaResource struct{}

type KafkaResourcePlugin struct{}

func (p *KafkaResourcePlugin) Name() string { return "kafka" }

func (p *KafkaResourcePlugin) MustCreateResource() manager.Resource { return &KafkaResource{} }

func (r *KafkaResource) MustOpen() {
	client := kafka.DefaultClient()
	client.MustOpen()
	if !client.Enabled() {
		return
	}
	topics := config.GetGlobalConfig().Kafka.Topics
	// broker 可能关闭了自动建主题，失败只告警，生产时由 broker 报错
	if err := client.EnsureTopics(topics.JobSubmissions, topics.JobEvents); err != nil {
		logger.Warnf("Ensure kafka topics failed submissions=%s events=%s error=%v", topics.JobSubmissions, topics.JobEvents, err)
	}
}

func (r *KafkaResource) Close() { kafka.DefaultClient().Close() }
